package hardware

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sprinksync/irrigation-controller/internal/model"
)

// Simulator is an in-memory actuator used in development and tests. FailOpen
// and FailClose let tests inject hardware faults per zone.
type Simulator struct {
	mu            sync.Mutex
	states        map[int]bool
	stabilization time.Duration

	FailOpen  map[int]bool
	FailClose map[int]bool
}

func NewSimulator(stabilization time.Duration) *Simulator {
	return &Simulator{
		states:        make(map[int]bool),
		stabilization: stabilization,
		FailOpen:      make(map[int]bool),
		FailClose:     make(map[int]bool),
	}
}

func (s *Simulator) Initialize(zones []model.Zone) error {
	s.mu.Lock()
	for _, z := range zones {
		s.states[z.ID] = false
	}
	s.mu.Unlock()

	time.Sleep(s.stabilization)

	log.Info().Int("zones", len(zones)).Msg("Simulated actuator initialized, all zones OFF")
	return nil
}

func (s *Simulator) Open(zoneID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.states[zoneID]; !ok {
		return fmt.Errorf("zone %d: %w", zoneID, ErrNotInitialized)
	}
	if s.FailOpen[zoneID] {
		return fmt.Errorf("simulated open failure for zone %d", zoneID)
	}
	s.states[zoneID] = true
	return nil
}

func (s *Simulator) Close(zoneID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.states[zoneID]; !ok {
		return fmt.Errorf("zone %d: %w", zoneID, ErrNotInitialized)
	}
	if s.FailClose[zoneID] {
		return fmt.Errorf("simulated close failure for zone %d", zoneID)
	}
	s.states[zoneID] = false
	return nil
}

func (s *Simulator) Read(zoneID int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[zoneID]
	if !ok {
		return false, fmt.Errorf("zone %d: %w", zoneID, ErrNotInitialized)
	}
	return state, nil
}

func (s *Simulator) CloseAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for zoneID := range s.states {
		if s.FailClose[zoneID] {
			if firstErr == nil {
				firstErr = fmt.Errorf("simulated close failure for zone %d", zoneID)
			}
			continue
		}
		s.states[zoneID] = false
	}
	return firstErr
}
