// Package hardware abstracts valve actuation. The real implementation drives
// relay pins through pinctrl; the simulator keeps pin state in memory so the
// rest of the system behaves identically without a relay board attached.
package hardware

import (
	"errors"

	"github.com/sprinksync/irrigation-controller/internal/model"
)

// ErrNotInitialized is returned for any operation against a zone id that was
// not part of Initialize.
var ErrNotInitialized = errors.New("zone pin not initialized")

// Actuator opens and closes valves by zone id. Close on an already-closed
// zone is a no-op success; implementations must be idempotent because the
// emergency path slams everything shut without checking first.
type Actuator interface {
	// Initialize drives every configured zone to the OFF state and blocks
	// for the stabilization interval before returning, protecting the relay
	// hardware from rapid cycling right after power-up.
	Initialize(zones []model.Zone) error

	// Open energizes the relay for the zone (valve opens).
	Open(zoneID int) error

	// Close de-energizes the relay for the zone (valve closes).
	Close(zoneID int) error

	// Read reports whether the zone's output is currently ON.
	Read(zoneID int) (bool, error)

	// CloseAll de-energizes every configured zone, continuing past
	// individual failures and returning the first error seen.
	CloseAll() error
}
