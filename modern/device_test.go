package modern

import (
	"io"
	"strings"
	"sync"
	"time"

	serialpkg "github.com/CK6170/tenmadc-go/serial"
)

// simDevice is a scripted power supply. A command is complete when it ends
// with eol; replies are looked up by command text.
type simDevice struct {
	mu      sync.Mutex
	eol     string
	replies map[string]string
	pending []byte
	writes  []string
	closes  int
}

func newSim(eol string, replies map[string]string) *simDevice {
	if replies == nil {
		replies = map[string]string{}
	}
	return &simDevice{eol: eol, replies: replies}
}

func (d *simDevice) Read(p []byte) (int, error) {
	d.mu.Lock()
	if len(d.pending) == 0 {
		d.mu.Unlock()
		time.Sleep(2 * time.Millisecond)
		return 0, io.EOF
	}
	n := copy(p, d.pending)
	d.pending = d.pending[n:]
	d.mu.Unlock()
	return n, nil
}

func (d *simDevice) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := string(p)
	d.writes = append(d.writes, s)
	if d.eol != "" && !strings.HasSuffix(s, d.eol) {
		return len(p), nil
	}
	if reply, ok := d.replies[strings.TrimSuffix(s, d.eol)]; ok {
		d.pending = append(d.pending, reply...)
	}
	return len(p), nil
}

func (d *simDevice) Flush() error {
	d.mu.Lock()
	d.pending = nil
	d.mu.Unlock()
	return nil
}

func (d *simDevice) Close() error {
	d.mu.Lock()
	d.closes++
	d.mu.Unlock()
	return nil
}

func (d *simDevice) sent() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.writes...)
}

func (d *simDevice) closeCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closes
}

func (d *simDevice) reset() {
	d.mu.Lock()
	d.writes = nil
	d.mu.Unlock()
}

const testTimeout = 150 * time.Millisecond

func simFactory(d *simDevice) TransportFactory {
	return func(string) (*serialpkg.Transport, error) {
		return serialpkg.NewTransport(d, testTimeout), nil
	}
}

// openSim binds a session for model to d without identification.
func openSim(d *simDevice, model string, opts ...Option) *Session {
	s, err := Open(simFactory(d), "sim", model, append([]Option{WithSettle(0)}, opts...)...)
	if err != nil {
		panic(err)
	}
	return s
}

type recorder struct {
	mu     sync.Mutex
	events []ExchangeEvent
}

func (r *recorder) Exchange(ev ExchangeEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) ops() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Op)
	}
	return out
}
