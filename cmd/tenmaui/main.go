package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/CK6170/tenmadc-go/modern"
	"github.com/CK6170/tenmadc-go/protocol"
	"github.com/CK6170/tenmadc-go/serial"
)

type screen int

const (
	screenEntry screen = iota
	screenConnected
)

type model struct {
	scr screen

	// entry
	portInput textinput.Model
	ports     []string
	portIdx   int

	// connection
	sess     *modern.Session
	port     string
	factory  modern.TransportFactory
	status   *protocol.Status
	lastErr  error
	infoLine string

	busy    bool
	spinner spinner.Model
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	offStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 2)
)

func initialModel(factory modern.TransportFactory, port string) model {
	in := textinput.New()
	in.Placeholder = "/dev/ttyUSB0"
	in.Focus()
	in.CharLimit = 256
	in.Width = 40

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := model{
		scr:       screenEntry,
		portInput: in,
		factory:   factory,
		spinner:   sp,
	}
	if strings.TrimSpace(port) != "" {
		m.portInput.SetValue(port)
		m.portInput.CursorEnd()
	}
	return m
}

type errMsg struct{ err error }
type portsMsg struct{ ports []string }
type connectedMsg struct {
	sess *modern.Session
	port string
}
type statusMsg struct {
	st   protocol.Status
	info string
}
type disconnectedMsg struct{}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, listPortsCmd)
}

func listPortsCmd() tea.Msg {
	ports, err := serial.ListPorts()
	if err != nil {
		return errMsg{err: err}
	}
	return portsMsg{ports: ports}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.disconnect()
			return m, tea.Quit
		}
		if m.busy {
			return m, nil
		}
		switch m.scr {
		case screenEntry:
			return m.updateEntryKey(msg)
		case screenConnected:
			return m.updateConnectedKey(msg)
		}

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case errMsg:
		m.busy = false
		m.lastErr = msg.err
		return m, nil

	case portsMsg:
		m.ports = msg.ports
		if m.portInput.Value() == "" && len(m.ports) > 0 {
			m.portInput.SetValue(m.ports[0])
			m.portInput.CursorEnd()
		}
		return m, nil

	case connectedMsg:
		m.sess = msg.sess
		m.port = msg.port
		m.scr = screenConnected
		m.lastErr = nil
		m.infoLine = fmt.Sprintf("Connected to %s on %s", m.sess.Profile().Name, m.port)
		m.busy = true
		return m, tea.Batch(m.spinner.Tick, m.statusCmd(""))

	case statusMsg:
		m.busy = false
		st := msg.st
		m.status = &st
		m.lastErr = nil
		if msg.info != "" {
			m.infoLine = msg.info
		}
		return m, nil

	case disconnectedMsg:
		m.sess = nil
		m.status = nil
		m.scr = screenEntry
		m.infoLine = "Disconnected"
		return m, nil
	}

	if m.scr == screenEntry {
		var cmd tea.Cmd
		m.portInput, cmd = m.portInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Tenma DC power supply") + "\n")
	b.WriteString(helpStyle.Render("Ctrl+C to quit.") + "\n\n")
	if m.infoLine != "" {
		b.WriteString(okStyle.Render(m.infoLine) + "\n")
	}
	if m.lastErr != nil {
		b.WriteString(errStyle.Render("Error: "+m.lastErr.Error()) + "\n")
	}
	b.WriteString("\n")

	switch m.scr {
	case screenEntry:
		b.WriteString(m.viewEntry())
	case screenConnected:
		b.WriteString(m.viewConnected())
	}
	if m.busy {
		b.WriteString("\n" + m.spinner.View() + " working...\n")
	}
	return b.String()
}

func (m model) viewEntry() string {
	var b strings.Builder
	b.WriteString("Serial port:\n")
	b.WriteString(m.portInput.View() + "\n\n")
	if len(m.ports) > 0 {
		b.WriteString(helpStyle.Render("Available: "+strings.Join(m.ports, "  ")) + "\n")
	}
	b.WriteString(helpStyle.Render("Tab cycles ports. Enter connects and identifies the supply.") + "\n")
	return b.String()
}

func (m model) viewConnected() string {
	var b strings.Builder
	if m.status == nil {
		b.WriteString("Reading status...\n")
	} else {
		b.WriteString(boxStyle.Render(renderStatus(m.sess, *m.status)) + "\n\n")
	}
	b.WriteString(helpStyle.Render("o: output on  f: output off  r: reset  s: refresh  d: disconnect") + "\n")
	return b.String()
}

func renderStatus(s *modern.Session, st protocol.Status) string {
	var b strings.Builder
	out := offStyle.Render("OFF")
	if st.Output {
		out = okStyle.Render("ON")
	}
	fmt.Fprintf(&b, "%s  output %s\n", s.Profile().Name, out)
	for i, o := range st.Outputs {
		fmt.Fprintf(&b, "  out%d %v\n", i+1, o)
	}
	fmt.Fprintf(&b, "CH1 %s", st.Channel1Mode)
	if s.Profile().NumChannels() > 1 {
		fmt.Fprintf(&b, "  CH2 %s  tracking %s", st.Channel2Mode, st.Tracking)
	}
	if st.Lock {
		b.WriteString("  locked")
	}
	return b.String()
}

func (m *model) disconnect() {
	if m.sess != nil {
		_ = m.sess.Close()
		m.sess = nil
	}
}

func (m model) updateEntryKey(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch k.String() {
	case "enter":
		port := strings.TrimSpace(m.portInput.Value())
		if port == "" {
			return m, func() tea.Msg { return errMsg{err: fmt.Errorf("serial port is empty")} }
		}
		m.busy = true
		m.lastErr = nil
		return m, tea.Batch(m.spinner.Tick, m.connectCmd(port))
	case "tab":
		if len(m.ports) == 0 {
			return m, listPortsCmd
		}
		m.portIdx = (m.portIdx + 1) % len(m.ports)
		m.portInput.SetValue(m.ports[m.portIdx])
		m.portInput.CursorEnd()
		return m, nil
	}
	var cmd tea.Cmd
	m.portInput, cmd = m.portInput.Update(k)
	return m, cmd
}

func (m model) updateConnectedKey(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.sess == nil {
		return m, nil
	}
	var action func(s *modern.Session) error
	var info string
	switch k.String() {
	case "o":
		action, info = func(s *modern.Session) error { return s.SetOutput(true) }, "Output on"
	case "f":
		action, info = func(s *modern.Session) error { return s.SetOutput(false) }, "Output off"
	case "r":
		action, info = modern.Reset, "Output reset"
	case "s":
		action, info = nil, "Status refreshed"
	case "d":
		m.disconnect()
		return m, func() tea.Msg { return disconnectedMsg{} }
	default:
		return m, nil
	}
	m.busy = true
	return m, tea.Batch(m.spinner.Tick, m.actionCmd(action, info))
}

func (m model) connectCmd(port string) tea.Cmd {
	factory := m.factory
	return func() tea.Msg {
		sess, err := modern.Detect(factory, port)
		if err != nil {
			return errMsg{err: err}
		}
		return connectedMsg{sess: sess, port: port}
	}
}

// actionCmd runs action, if any, then refreshes the status. Status is only
// read after a user action.
func (m model) actionCmd(action func(s *modern.Session) error, info string) tea.Cmd {
	sess := m.sess
	return func() tea.Msg {
		if action != nil {
			if err := action(sess); err != nil {
				return errMsg{err: err}
			}
		}
		st, err := sess.ReadStatus()
		if err != nil {
			return errMsg{err: err}
		}
		return statusMsg{st: st, info: info}
	}
}

func (m model) statusCmd(info string) tea.Cmd {
	return m.actionCmd(nil, info)
}

func main() {
	port := ""
	if len(os.Args) > 1 {
		port = os.Args[1]
	}
	factory := modern.SerialFactory(serial.DefaultBaud, time.Second)
	p := tea.NewProgram(initialModel(factory, port), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}
