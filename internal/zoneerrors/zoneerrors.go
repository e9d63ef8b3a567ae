// Package zoneerrors defines the error kinds the zone safety coordinator and
// its callers agree on. Sentinels cover the parameterless conditions; the
// struct types carry the values the API layer needs for user messaging.
package zoneerrors

import (
	"errors"
	"fmt"
)

var (
	ErrZoneNotFound   = errors.New("zone not found")
	ErrGroupNotFound  = errors.New("zone group not found")
	ErrEmptyGroup     = errors.New("group has no zones")
	ErrAlreadyRunning = errors.New("zone is already running")
	ErrNotRunning     = errors.New("zone is not running")
)

// ConcurrencyLimitError reports a start refused because it would exceed the
// max-concurrent-zones ceiling in effect at decision time.
type ConcurrencyLimitError struct {
	Limit int
}

func (e *ConcurrencyLimitError) Error() string {
	return fmt.Sprintf("maximum %d zones can run concurrently", e.Limit)
}

// InvalidDurationError reports a requested duration outside the configured
// bounds, inclusive.
type InvalidDurationError struct {
	Minutes int
	Min     int
	Max     int
}

func (e *InvalidDurationError) Error() string {
	return fmt.Sprintf("duration must be between %d and %d minutes, got %d", e.Min, e.Max, e.Minutes)
}

// MemberAlreadyRunningError blocks a group run because one of its members is
// mid-activation. Names the first conflicting zone.
type MemberAlreadyRunningError struct {
	ZoneID   int
	ZoneName string
}

func (e *MemberAlreadyRunningError) Error() string {
	return fmt.Sprintf("zone %s is already running", e.ZoneName)
}

// HardwareError wraps a failed actuation. It maps to a server-side failure,
// not a client mistake.
type HardwareError struct {
	Op     string // "open", "close", "read", "initialize"
	ZoneID int
	Err    error
}

func (e *HardwareError) Error() string {
	return fmt.Sprintf("hardware %s failed for zone %d: %v", e.Op, e.ZoneID, e.Err)
}

func (e *HardwareError) Unwrap() error { return e.Err }
