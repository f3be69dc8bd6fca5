package device

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSerialScannerNoMatchesIsNotAnError(t *testing.T) {
	s := &SerialScanner{deviceType: "openbci", globs: []string{"/nonexistent-neuroflux-test-path/*"}}
	require.Equal(t, ProtocolSerial, s.Protocol())

	found, err := s.Scan()
	require.NoError(t, err)
	require.Empty(t, found)
}

func TestSerialScannerMatchesGlobPattern(t *testing.T) {
	dir := t.TempDir()
	f, err := os.CreateTemp(dir, "ttyUSB*")
	require.NoError(t, err)
	f.Close()

	s := &SerialScanner{deviceType: "openbci", globs: []string{dir + "/ttyUSB*"}}
	found, err := s.Scan()
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, "openbci", found[0].Type)
	require.Equal(t, ProtocolSerial, found[0].Protocol)
}
