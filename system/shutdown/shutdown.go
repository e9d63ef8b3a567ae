// Package shutdown closes every valve and announces the stop before the
// process exits.
package shutdown

import (
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sprinksync/irrigation-controller/internal/coordinator"
	"github.com/sprinksync/irrigation-controller/internal/hardware"
	"github.com/sprinksync/irrigation-controller/internal/mqtt"
)

// Shutdown stops all running zones through the coordinator, sweeps every
// output closed at the hardware layer, publishes the shutdown event, and
// exits. Safe to call with zones already stopped.
func Shutdown(coord *coordinator.Coordinator, hw hardware.Actuator, pub mqtt.Publisher) {
	result := coord.StopAll()
	if result.Count > 0 {
		log.Info().Ints("zones", result.Stopped).Msg("Stopped running zones for shutdown")
	}

	if err := hw.CloseAll(); err != nil {
		log.Error().Err(err).Msg("Hardware close-all reported errors during shutdown")
	}

	if pub != nil {
		pub.PublishSystem(mqtt.SystemEvent{
			Timestamp: time.Now(),
			Event:     mqtt.EventShutdown,
			Detail:    "controller shutting down",
		})
		pub.Close()
	}

	log.Info().Msg("Controller shut down")
	os.Exit(0)
}

// ShutdownWithError logs the fatal error, then shuts down.
func ShutdownWithError(coord *coordinator.Coordinator, hw hardware.Actuator, pub mqtt.Publisher, err error, msg string) {
	log.Error().Err(err).Msg(msg)
	Shutdown(coord, hw, pub)
}
