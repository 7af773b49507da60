// Package persistence stores pool records for warm starts. The live pool
// store is an external collaborator; this adapter only caches its last known
// answer so the graph can be rebuilt before the stream catches up.
package persistence

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"

	boltdb "github.com/andrew-solarstorm/bolt-db"
	"github.com/bytedance/sonic"
	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog/log"

	"github.com/solarisfi/sor-engine/internal/domain"
)

const (
	PoolsBucket  = "pools"
	TokensBucket = "tokens"

	DefaultDBPath = "./data/sor-engine.db"
)

type StoredPool struct {
	Address    string `json:"address"`
	Variant    uint8  `json:"variant"`
	TokenMintA string `json:"tokenMintA"`
	TokenMintB string `json:"tokenMintB"`
	DecimalsA  uint8  `json:"decimalsA"`
	DecimalsB  uint8  `json:"decimalsB"`
	ReserveA   string `json:"reserveA"`
	ReserveB   string `json:"reserveB"`
	FeeRate    uint32 `json:"feeRate"`
	Active     bool   `json:"active"`
	LastSeq    uint64 `json:"lastSeq"`

	Concentrated *StoredConcentrated `json:"concentrated,omitempty"`
	Stable       *StoredStable       `json:"stable,omitempty"`
}

type StoredConcentrated struct {
	SqrtPriceX64 string `json:"sqrtPriceX64"`
	Liquidity    string `json:"liquidity"`
}

type StoredStable struct {
	Amplification uint64 `json:"amplification"`
}

type StoredToken struct {
	Mint     string `json:"mint"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

type Storage struct {
	db     *boltdb.BoltDatabase
	dbPath string
}

func NewStorage(dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = DefaultDBPath
	}
	os.MkdirAll(filepath.Dir(dbPath), 0755)

	db := boltdb.NewBoltDatabase(dbPath)
	if db == nil {
		return nil, fmt.Errorf("failed to open database at %s", dbPath)
	}

	log.Info().Str("path", dbPath).Msg("[poolStorage] opened database")

	return &Storage{db: db, dbPath: dbPath}, nil
}

func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Storage) SavePool(pool *domain.Pool) error {
	stored := poolToStored(pool)
	data, err := sonic.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal pool: %w", err)
	}
	return s.db.Set(PoolsBucket, []byte(pool.Address.String()), data)
}

func (s *Storage) SavePoolBatch(pools []*domain.Pool) error {
	if len(pools) == 0 {
		return nil
	}

	batch := s.db.NewBatch()
	for _, pool := range pools {
		stored := poolToStored(pool)
		data, err := sonic.Marshal(stored)
		if err != nil {
			return fmt.Errorf("failed to marshal pool %s: %w", pool.Address.String(), err)
		}

		value := data
		op := &boltdb.WriteOperation{
			Bucket: []byte(PoolsBucket),
			Key:    []byte(pool.Address.String()),
			Value:  &value,
			Op:     boltdb.OpSet,
		}
		if err := batch.Add(op); err != nil {
			return fmt.Errorf("failed to add pool %s to batch: %w", pool.Address.String(), err)
		}
	}

	if err := batch.Execute(); err != nil {
		log.Error().Err(err).Int("count", len(pools)).Msg("[poolStorage] failed to execute batch")
		return err
	}

	log.Info().Int("count", len(pools)).Msg("[poolStorage] saved pool batch")
	return nil
}

func (s *Storage) LoadAllPools() ([]*domain.Pool, error) {
	data, err := s.db.List(PoolsBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to list pools: %w", err)
	}

	pools := make([]*domain.Pool, 0, len(data))
	failed := 0

	for address, value := range data {
		var stored StoredPool
		if err := sonic.Unmarshal(value, &stored); err != nil {
			log.Error().Str("address", address).Err(err).Msg("[poolStorage] failed to unmarshal pool, skipping")
			failed++
			continue
		}

		pool, err := storedToPool(&stored)
		if err != nil {
			log.Error().Str("address", address).Err(err).Msg("[poolStorage] failed to convert stored pool, skipping")
			failed++
			continue
		}

		pools = append(pools, pool)
	}

	if failed > 0 {
		log.Error().
			Int("total_in_db", len(data)).
			Int("loaded", len(pools)).
			Int("failed", failed).
			Msg("[poolStorage] pool loading completed with errors")
	} else {
		log.Info().
			Int("total_in_db", len(data)).
			Int("loaded", len(pools)).
			Msg("[poolStorage] pool loading completed")
	}

	return pools, nil
}

func (s *Storage) SaveToken(t domain.Token) error {
	stored := StoredToken{Mint: t.Mint.String(), Symbol: t.Symbol, Decimals: t.Decimals}
	data, err := sonic.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}
	return s.db.Set(TokensBucket, []byte(t.Mint.String()), data)
}

func (s *Storage) LoadTokenDictionary() (domain.TokenDictionary, error) {
	data, err := s.db.List(TokensBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}

	dict := make(domain.TokenDictionary, len(data))
	for address, value := range data {
		var stored StoredToken
		if err := sonic.Unmarshal(value, &stored); err != nil {
			log.Warn().Str("mint", address).Err(err).Msg("[poolStorage] failed to unmarshal token, skipping")
			continue
		}
		mint, err := solana.PublicKeyFromBase58(stored.Mint)
		if err != nil {
			log.Warn().Str("mint", address).Err(err).Msg("[poolStorage] invalid token mint, skipping")
			continue
		}
		dict[mint] = domain.Token{Mint: mint, Symbol: stored.Symbol, Decimals: stored.Decimals}
	}

	return dict, nil
}

func (s *Storage) GetPoolCount() (int, error) {
	data, err := s.db.List(PoolsBucket)
	if err != nil {
		return 0, err
	}
	return len(data), nil
}

func poolToStored(pool *domain.Pool) *StoredPool {
	reserveA := "0"
	reserveB := "0"
	if pool.ReserveA != nil {
		reserveA = pool.ReserveA.String()
	}
	if pool.ReserveB != nil {
		reserveB = pool.ReserveB.String()
	}

	stored := &StoredPool{
		Address:    pool.Address.String(),
		Variant:    uint8(pool.Variant),
		TokenMintA: pool.TokenMintA.String(),
		TokenMintB: pool.TokenMintB.String(),
		DecimalsA:  pool.DecimalsA,
		DecimalsB:  pool.DecimalsB,
		ReserveA:   reserveA,
		ReserveB:   reserveB,
		FeeRate:    pool.FeeRate,
		Active:     pool.Active,
		LastSeq:    pool.LastSeq,
	}

	switch data := pool.TypeSpecific.(type) {
	case *domain.ConcentratedData:
		if data != nil && data.SqrtPriceX64 != nil && data.Liquidity != nil {
			stored.Concentrated = &StoredConcentrated{
				SqrtPriceX64: data.SqrtPriceX64.String(),
				Liquidity:    data.Liquidity.String(),
			}
		}
	case *domain.StableData:
		if data != nil {
			stored.Stable = &StoredStable{Amplification: data.Amplification}
		}
	}

	return stored
}

func storedToPool(stored *StoredPool) (*domain.Pool, error) {
	address, err := solana.PublicKeyFromBase58(stored.Address)
	if err != nil {
		return nil, fmt.Errorf("invalid address: %w", err)
	}

	tokenMintA, err := solana.PublicKeyFromBase58(stored.TokenMintA)
	if err != nil {
		return nil, fmt.Errorf("invalid tokenMintA: %w", err)
	}

	tokenMintB, err := solana.PublicKeyFromBase58(stored.TokenMintB)
	if err != nil {
		return nil, fmt.Errorf("invalid tokenMintB: %w", err)
	}

	reserveA := new(big.Int)
	reserveA.SetString(stored.ReserveA, 10)

	reserveB := new(big.Int)
	reserveB.SetString(stored.ReserveB, 10)

	pool := &domain.Pool{
		Address:    address,
		Variant:    domain.PoolVariant(stored.Variant),
		TokenMintA: tokenMintA,
		TokenMintB: tokenMintB,
		DecimalsA:  stored.DecimalsA,
		DecimalsB:  stored.DecimalsB,
		ReserveA:   reserveA,
		ReserveB:   reserveB,
		FeeRate:    stored.FeeRate,
		Active:     stored.Active,
		LastSeq:    stored.LastSeq,
	}
	pool.SyncShadowReserves()
	pool.UpdateFlags()

	switch pool.Variant {
	case domain.VariantConcentrated:
		if stored.Concentrated != nil {
			sqrtPrice := new(big.Int)
			sqrtPrice.SetString(stored.Concentrated.SqrtPriceX64, 10)
			liquidity := new(big.Int)
			liquidity.SetString(stored.Concentrated.Liquidity, 10)
			pool.TypeSpecific = &domain.ConcentratedData{
				SqrtPriceX64: sqrtPrice,
				Liquidity:    liquidity,
			}
		}
	case domain.VariantStable:
		if stored.Stable != nil {
			pool.TypeSpecific = &domain.StableData{Amplification: stored.Stable.Amplification}
		}
	}

	return pool, nil
}
