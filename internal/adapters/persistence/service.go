package persistence

import (
	"time"

	"github.com/rs/zerolog/log"
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/solarisfi/sor-engine/internal/config"
	"github.com/solarisfi/sor-engine/internal/services/router"
)

const PERSISTENCE_SERVICE = "persistence.Service"

// Service wires the pool store into the graph: warm start at boot, periodic
// batch save while running, final save on shutdown.
type Service struct {
	container.BaseDIInstance

	storage *Storage
	graph   *router.Graph
	conf    *config.StoreConfig

	stopCh chan struct{}
}

func (s *Service) ID() string {
	return PERSISTENCE_SERVICE
}

func (s *Service) Configure(c container.IContainer) error {
	s.conf = c.GetConfig(config.STORE_CONFIG_KEY).(*config.StoreConfig)
	s.graph = c.Instance(router.ROUTER_SERVICE).(*router.Graph)
	s.stopCh = make(chan struct{})

	if !s.conf.PersistenceEnabled {
		return nil
	}

	storage, err := NewStorage(s.conf.DBPath)
	if err != nil {
		return err
	}
	s.storage = storage
	return nil
}

func (s *Service) Start() error {
	if s.storage == nil {
		return nil
	}

	dict, err := s.storage.LoadTokenDictionary()
	if err != nil {
		log.Warn().Err(err).Msg("[persistence] failed to load token dictionary")
	}
	pools, err := s.storage.LoadAllPools()
	if err != nil {
		log.Warn().Err(err).Msg("[persistence] failed to load pools, starting cold")
	} else if len(pools) > 0 {
		s.graph.BuildFromPools(pools, dict)
		log.Info().Int("pools", len(pools)).Msg("[persistence] warm start complete")
	}

	go s.persistLoop()
	return nil
}

func (s *Service) Stop() error {
	if s.storage == nil {
		return nil
	}
	close(s.stopCh)
	if err := s.storage.SavePoolBatch(s.graph.GetAllPools()); err != nil {
		log.Error().Err(err).Msg("[persistence] final pool save failed")
	}
	return s.storage.Close()
}

func (s *Service) persistLoop() {
	interval := time.Duration(s.conf.PersistInterval) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			if err := s.storage.SavePoolBatch(s.graph.GetAllPools()); err != nil {
				log.Error().Err(err).Msg("[persistence] periodic pool save failed")
			}
		}
	}
}
