package main

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CK6170/tenmadc-go/modern"
	"github.com/CK6170/tenmadc-go/serial"
)

// supply answers *IDN? and STATUS? like a 72-2540 and tracks the output bit.
type supply struct {
	mu      sync.Mutex
	output  bool
	pending []byte
	writes  []string
}

func (d *supply) Read(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.pending) == 0 {
		time.Sleep(time.Millisecond)
		return 0, io.EOF
	}
	n := copy(p, d.pending)
	d.pending = d.pending[n:]
	return n, nil
}

func (d *supply) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cmd := string(p)
	d.writes = append(d.writes, cmd)
	switch cmd {
	case "*IDN?":
		d.pending = append(d.pending, "TENMA 72-2540 V2.1"...)
	case "STATUS?":
		var b byte = 0x01
		if d.output {
			b |= 0x40
		}
		d.pending = append(d.pending, b)
	case "OUT1":
		d.output = true
	case "OUT0":
		d.output = false
	}
	return len(p), nil
}

func (d *supply) Flush() error { return nil }
func (d *supply) Close() error { return nil }

func key(s string) tea.KeyMsg {
	if s == "enter" {
		return tea.KeyMsg{Type: tea.KeyEnter}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// run drives cmd to its first non-spinner message.
func run(t *testing.T, m tea.Model, cmd tea.Cmd) tea.Model {
	t.Helper()
	require.NotNil(t, cmd)
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		for _, c := range batch {
			if c == nil {
				continue
			}
			inner := c()
			if _, tick := inner.(spinner.TickMsg); tick {
				continue
			}
			m, _ = m.Update(inner)
		}
		return m
	}
	m, _ = m.Update(msg)
	return m
}

func TestConnectAndToggleOutput(t *testing.T) {
	dev := &supply{}
	factory := func(string) (*serial.Transport, error) {
		return serial.NewTransport(dev, 100*time.Millisecond), nil
	}
	var m tea.Model = initialModel(factory, "/dev/sim")

	m, cmd := m.Update(key("enter"))
	assert.True(t, m.(model).busy)
	m = run(t, m, cmd)

	// connectedMsg triggers a status read.
	mm := m.(model)
	require.Equal(t, screenConnected, mm.scr)
	require.NotNil(t, mm.sess)
	assert.Equal(t, "72-2540", mm.sess.Profile().Name)

	m, cmd = m.Update(connectedMsg{sess: mm.sess, port: "/dev/sim"})
	m = run(t, m, cmd)
	require.NotNil(t, m.(model).status)
	assert.False(t, m.(model).status.Output)

	m, cmd = m.Update(key("o"))
	m = run(t, m, cmd)
	assert.True(t, m.(model).status.Output)
	assert.Contains(t, m.View(), "Output on")

	m, cmd = m.Update(key("r"))
	m = run(t, m, cmd)
	assert.True(t, m.(model).status.Output)

	m, cmd = m.Update(key("f"))
	m = run(t, m, cmd)
	assert.False(t, m.(model).status.Output)

	m, cmd = m.Update(key("d"))
	m = run(t, m, cmd)
	assert.Equal(t, screenEntry, m.(model).scr)
	assert.Nil(t, m.(model).sess)
}

func TestEntryRejectsEmptyPort(t *testing.T) {
	var m tea.Model = initialModel(modern.SerialFactory(9600, time.Second), "")
	m, cmd := m.Update(key("enter"))
	m = run(t, m, cmd)
	assert.Error(t, m.(model).lastErr)
}

func TestPortsFillInput(t *testing.T) {
	var m tea.Model = initialModel(nil, "")
	m, _ = m.Update(portsMsg{ports: []string{"/dev/ttyUSB0", "/dev/ttyUSB1"}})
	assert.Equal(t, "/dev/ttyUSB0", m.(model).portInput.Value())

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, "/dev/ttyUSB1", m.(model).portInput.Value())
}
