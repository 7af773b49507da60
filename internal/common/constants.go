package common

import "github.com/gagliardetto/solana-go"

// Recognized stablecoin mints. A quote whose output token is in this set may
// default its USD price to 1.0; every other output token must carry an
// explicit targetUsdPrice on the request.
var StablecoinMints = map[solana.PublicKey]struct{}{
	solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"): {}, // USDC
	solana.MustPublicKeyFromBase58("Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"): {}, // USDT
	solana.MustPublicKeyFromBase58("uSd2czE61Evaf76RNbq4KPpXnkiL3irdzgLFUMe3NoG"):  {},
}

// IsStablecoin reports whether the mint is a recognized USD stablecoin
func IsStablecoin(mint solana.PublicKey) bool {
	_, ok := StablecoinMints[mint]
	return ok
}
