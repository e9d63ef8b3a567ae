package hardware

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sprinksync/irrigation-controller/internal/model"
	"github.com/sprinksync/irrigation-controller/internal/pinctrl"
)

// RelayBoard drives valve relays through pinctrl. With safeMode set, pin
// writes are skipped but all bookkeeping still happens, which lets the full
// stack run on a bench Pi with no solenoids wired up.
type RelayBoard struct {
	pins          map[int]model.GPIOPin
	stabilization time.Duration
	safeMode      bool
}

func NewRelayBoard(stabilization time.Duration, safeMode bool) *RelayBoard {
	return &RelayBoard{
		pins:          make(map[int]model.GPIOPin),
		stabilization: stabilization,
		safeMode:      safeMode,
	}
}

func (b *RelayBoard) Initialize(zones []model.Zone) error {
	for _, z := range zones {
		b.pins[z.ID] = z.Pin
		if err := b.drive(z.Pin, false); err != nil {
			return fmt.Errorf("failed to initialize zone %d: %w", z.ID, err)
		}
	}

	// Relay stabilization after power-up.
	time.Sleep(b.stabilization)

	log.Info().Int("zones", len(zones)).Bool("safe_mode", b.safeMode).Msg("Relay board initialized, all zones OFF")
	return nil
}

func (b *RelayBoard) Open(zoneID int) error {
	pin, ok := b.pins[zoneID]
	if !ok {
		return fmt.Errorf("zone %d: %w", zoneID, ErrNotInitialized)
	}
	return b.drive(pin, true)
}

func (b *RelayBoard) Close(zoneID int) error {
	pin, ok := b.pins[zoneID]
	if !ok {
		return fmt.Errorf("zone %d: %w", zoneID, ErrNotInitialized)
	}
	return b.drive(pin, false)
}

func (b *RelayBoard) Read(zoneID int) (bool, error) {
	pin, ok := b.pins[zoneID]
	if !ok {
		return false, fmt.Errorf("zone %d: %w", zoneID, ErrNotInitialized)
	}
	level, err := pinctrl.ReadLevel(pin.Number)
	if err != nil {
		return false, err
	}
	return pin.ActiveHigh == level, nil
}

func (b *RelayBoard) CloseAll() error {
	var firstErr error
	for zoneID, pin := range b.pins {
		if err := b.drive(pin, false); err != nil {
			log.Error().Err(err).Int("zone_id", zoneID).Msg("Failed to close zone during close-all")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// drive sets the pin to the level that makes the relay active or inactive,
// honoring the board's active-high/active-low convention.
func (b *RelayBoard) drive(pin model.GPIOPin, active bool) error {
	if b.safeMode {
		return nil
	}
	level := "dl"
	if pin.ActiveHigh == active {
		level = "dh"
	}
	return pinctrl.SetPin(pin.Number, "op", "pn", level)
}
