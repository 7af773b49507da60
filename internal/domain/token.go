package domain

import "github.com/gagliardetto/solana-go"

// Token is an immutable graph node. Symbol is display-only and non-unique;
// the mint address is the key.
type Token struct {
	Mint     solana.PublicKey `json:"mint"`
	Symbol   string           `json:"symbol"`
	Decimals uint8            `json:"decimals"`
}

// TokenDictionary maps mint -> token metadata, supplied by the pool store.
type TokenDictionary map[solana.PublicKey]Token

// RawAmount converts a human-readable amount to smallest units.
func (t Token) RawAmount(human float64) float64 {
	return human * pow10(t.Decimals)
}

// HumanAmount converts a smallest-unit amount to human units.
func (t Token) HumanAmount(raw float64) float64 {
	return raw / pow10(t.Decimals)
}

func pow10(decimals uint8) float64 {
	f := 1.0
	for i := uint8(0); i < decimals; i++ {
		f *= 10
	}
	return f
}
