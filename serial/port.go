package serial

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	bugst "go.bug.st/serial"
)

// ListPorts enumerates serial ports. The OS enumeration is preferred; if it
// fails or finds nothing, common device paths are globbed instead.
func ListPorts() ([]string, error) {
	ports, err := bugst.GetPortsList()
	if err == nil && len(ports) > 0 {
		sort.Strings(ports)
		return ports, nil
	}
	fallback := candidatePorts()
	if len(fallback) == 0 && err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	return fallback, nil
}

func candidatePorts() []string {
	if runtime.GOOS == "windows" {
		out := make([]string, 0, 64)
		for i := 1; i <= 64; i++ {
			out = append(out, fmt.Sprintf("COM%d", i))
		}
		return out
	}
	candidates := make([]string, 0, 32)
	for _, pat := range []string{"/dev/ttyUSB*", "/dev/ttyACM*", "/dev/ttyS*", "/dev/cu.*"} {
		matches, _ := filepath.Glob(pat)
		for _, m := range matches {
			if _, err := os.Stat(m); err == nil {
				candidates = append(candidates, m)
			}
		}
	}
	return candidates
}

// ProbeTimeout bounds the reply wait while scanning ports.
const ProbeTimeout = 600 * time.Millisecond

// ProbeFunc reports whether the device on an open transport answered.
type ProbeFunc func(t *Transport) bool

// AutoDetectPort opens each port in turn and returns the first one for which
// probe succeeds. Every opened port is closed before moving on.
func AutoDetectPort(ports []string, baud int, probe ProbeFunc) string {
	for _, name := range ports {
		if TestPort(name, baud, probe) {
			return name
		}
	}
	return ""
}

// TestPort opens name and runs probe against it.
func TestPort(name string, baud int, probe ProbeFunc) bool {
	t, err := Open(name, baud, ProbeTimeout)
	if err != nil {
		return false
	}
	defer func() { _ = t.Close() }()
	return probe(t)
}
