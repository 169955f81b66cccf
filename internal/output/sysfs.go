package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const sysfsLEDPath = "/sys/class/leds"

// sysfs implements Driver on top of the Linux sysfs LED interface.
// The register value is written as the LED brightness, so a 1-bit register
// gives on/off control of a board LED.
type sysfs struct {
	ledPath string
}

// newSysfs creates a sysfs LED driver and switches the LED trigger to
// manual control.
func newSysfs(root, ledName string) (*sysfs, error) {
	if root == "" {
		root = sysfsLEDPath
	}
	ledPath := filepath.Join(root, ledName)

	if _, err := os.Stat(ledPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("LED %q not found at %s", ledName, ledPath)
	}

	triggerPath := filepath.Join(ledPath, "trigger")
	if err := os.WriteFile(triggerPath, []byte("none"), 0o644); err != nil {
		return nil, fmt.Errorf("failed to set LED trigger to none: %w", err)
	}

	return &sysfs{ledPath: ledPath}, nil
}

// Write sets the LED brightness.
func (s *sysfs) Write(value uint32) error {
	brightnessPath := filepath.Join(s.ledPath, "brightness")
	if err := os.WriteFile(brightnessPath, []byte(strconv.FormatUint(uint64(value), 10)), 0o644); err != nil {
		return fmt.Errorf("failed to set LED brightness: %w", err)
	}
	return nil
}

// Reset turns the LED off.
func (s *sysfs) Reset() error {
	return s.Write(0)
}
