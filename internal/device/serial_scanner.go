package device

import (
	"fmt"
	"path/filepath"
)

// serialGlobs lists the device-node patterns a USB-serial BCI headset
// (OpenBCI Cyton, Ganglion) shows up under on Linux.
var serialGlobs = []string{"/dev/ttyUSB*", "/dev/ttyACM*"}

// SerialScanner discovers USB-serial devices by globbing device nodes,
// the same filesystem-enumeration approach this stack uses elsewhere for
// hardware discovery without a vendor SDK.
type SerialScanner struct {
	deviceType string
	globs      []string
}

// NewSerialScanner builds a scanner that reports every matched port as a
// discoverable device of deviceType.
func NewSerialScanner(deviceType string) *SerialScanner {
	return &SerialScanner{deviceType: deviceType, globs: serialGlobs}
}

func (s *SerialScanner) Protocol() Protocol { return ProtocolSerial }

// Scan globs the configured device-node patterns and returns one
// DiscoveredDevice per match. A glob pattern with no matches is not an
// error; only a malformed pattern is.
func (s *SerialScanner) Scan() ([]DiscoveredDevice, error) {
	var out []DiscoveredDevice
	for _, pattern := range s.globs {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return out, fmt.Errorf("device: scanning %s: %w", pattern, err)
		}
		for _, port := range matches {
			out = append(out, newDiscoveredDevice(
				s.deviceType,
				filepath.Base(port),
				ProtocolSerial,
				map[string]string{"port": port},
				nil,
			))
		}
	}
	return out, nil
}
