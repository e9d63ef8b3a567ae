// Package startup generates the boot-time GPIO safe-state script and the
// systemd units that run it before the controller comes up. Every valve
// relay is driven to its de-energized level before any software starts, so
// a crash-reboot cycle can never leave water flowing.
package startup

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sprinksync/irrigation-controller/internal/config"
)

// WriteStartupScript emits a shell script that drives every configured zone
// pin to its off level.
func WriteStartupScript(cfg *config.Config) error {
	var lines []string
	lines = append(lines, "#!/bin/bash", "", "# Irrigation valve GPIO safe state at boot", "")

	for _, z := range cfg.Zones {
		drive := "dh"
		if cfg.RelayActiveHigh {
			drive = "dl"
		}
		lines = append(lines, fmt.Sprintf("# zone %d: %s", z.ID, z.Name))
		lines = append(lines, fmt.Sprintf("pinctrl set %d op pn %s", z.Pin, drive))
		lines = append(lines, "")
	}

	contents := strings.Join(lines, "\n") + "\n"
	return os.WriteFile(cfg.BootScriptFilePath, []byte(contents), 0755)
}

// InstallStartupService writes the oneshot systemd unit that runs the safe
// state script at boot.
func InstallStartupService(cfg *config.Config) error {
	unitContents := fmt.Sprintf(`[Unit]
Description=Drive irrigation valve GPIO pins to safe state at boot
After=network.target

[Service]
Type=oneshot
Environment=PATH=/usr/local/bin:/usr/bin:/bin
ExecStart=%s
RemainAfterExit=true

[Install]
WantedBy=multi-user.target
`, cfg.BootScriptFilePath)

	return os.WriteFile(cfg.OSServicePath, []byte(unitContents), 0644)
}

// InstallControllerService writes the main controller unit, ordered after the
// safe state unit so the pins are known-off before the process starts.
func InstallControllerService(cfg *config.Config) error {
	gpioUnitName := filepath.Base(cfg.OSServicePath)

	unit := fmt.Sprintf(`[Unit]
Description=Irrigation controller main service
After=%s
Requires=%s

[Service]
Type=simple
User=irrigation
WorkingDirectory=/opt/irrigation-controller
Environment=PATH=/usr/local/bin:/usr/bin:/bin
ExecStart=/opt/irrigation-controller/irrigation-controller -config-file /opt/irrigation-controller/config.json
Restart=on-failure
RestartSec=5s

[Install]
WantedBy=multi-user.target
`, gpioUnitName, gpioUnitName)

	return os.WriteFile(cfg.MainServicePath, []byte(unit), 0644)
}

// RunStartupScript executes the safe state script immediately, for use when
// the controller starts outside of systemd.
func RunStartupScript(cfg *config.Config) error {
	cmd := exec.Command("/bin/bash", cfg.BootScriptFilePath)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
