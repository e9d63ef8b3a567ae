package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sprinksync/irrigation-controller/db"
	"github.com/sprinksync/irrigation-controller/internal/api"
	"github.com/sprinksync/irrigation-controller/internal/config"
	"github.com/sprinksync/irrigation-controller/internal/coordinator"
	"github.com/sprinksync/irrigation-controller/internal/datadog"
	"github.com/sprinksync/irrigation-controller/internal/hardware"
	"github.com/sprinksync/irrigation-controller/internal/logging"
	"github.com/sprinksync/irrigation-controller/internal/mqtt"
	"github.com/sprinksync/irrigation-controller/internal/notifications"
	"github.com/sprinksync/irrigation-controller/internal/scheduler"
	"github.com/sprinksync/irrigation-controller/internal/sequencer"
	"github.com/sprinksync/irrigation-controller/system/shutdown"
	"github.com/sprinksync/irrigation-controller/system/startup"
)

func main() {
	cfg := config.Load()
	logging.Init(cfg.LogLevel)

	log.Info().
		Str("db", cfg.DBPath).
		Str("gpio_mode", cfg.GPIOMode).
		Int("zones", len(cfg.Zones)).
		Msg("Starting irrigation controller")

	if cfg.SafeMode {
		log.Warn().Msg("SAFE MODE ENABLED - valve outputs are disabled system-wide")
	}

	datadog.InitMetrics(&cfg)
	notifications.Init(cfg.NtfyTopic)

	conn, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer conn.Close()

	if err := db.SeedDatabase(conn, &cfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed database")
	}

	zones, err := db.GetAllZones(conn)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load zones")
	}

	var pub mqtt.Publisher = mqtt.NopPublisher{}
	if cfg.MQTTBroker != "" {
		real, err := mqtt.NewRealPublisher(cfg.MQTTBroker)
		if err != nil {
			log.Warn().Err(err).Str("broker", cfg.MQTTBroker).Msg("MQTT broker unreachable, event feed disabled")
		} else {
			pub = real
		}
	}

	stabilization := time.Duration(cfg.StabilizationMs) * time.Millisecond
	var hw hardware.Actuator
	if cfg.GPIOMode == "pinctrl" {
		installBootSafeState(&cfg)
		hw = hardware.NewRelayBoard(stabilization, cfg.SafeMode)
	} else {
		hw = hardware.NewSimulator(stabilization)
	}
	if err := hw.Initialize(zones); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize valve outputs")
	}

	coord := coordinator.New(conn, hw, pub)
	seq := sequencer.New(conn, coord, cfg.InterZoneBufferSeconds)

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Fatal().Err(err).Str("timezone", cfg.Timezone).Msg("Invalid timezone")
	}
	sched := scheduler.New(conn, coord, seq, loc)
	if err := sched.Load(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load schedules")
	}
	sched.Start()

	pub.PublishSystem(mqtt.SystemEvent{
		Timestamp: time.Now(),
		Event:     mqtt.EventStartup,
		Detail:    "controller started",
	})

	go func() {
		server := api.NewServer(conn, coord, seq, sched, &cfg)
		if err := server.Start(cfg.APIPort); err != nil {
			log.Fatal().Err(err).Msg("API server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	sched.Stop()
	shutdown.Shutdown(coord, hw, pub)
}

// installBootSafeState refreshes the boot-time GPIO script and systemd units
// so the current zone catalog is driven to safe state on the next reboot.
func installBootSafeState(cfg *config.Config) {
	if cfg.BootScriptFilePath == "" {
		return
	}
	if err := startup.WriteStartupScript(cfg); err != nil {
		log.Warn().Err(err).Msg("Failed to write boot safe-state script")
		return
	}
	if cfg.OSServicePath != "" {
		if err := startup.InstallStartupService(cfg); err != nil {
			log.Warn().Err(err).Msg("Failed to install boot safe-state service")
		}
	}
	if cfg.MainServicePath != "" {
		if err := startup.InstallControllerService(cfg); err != nil {
			log.Warn().Err(err).Msg("Failed to install controller service")
		}
	}
}
