package modern

import (
	"fmt"
	"slices"
	"time"

	"github.com/CK6170/tenmadc-go/models"
	"github.com/CK6170/tenmadc-go/protocol"
	serialpkg "github.com/CK6170/tenmadc-go/serial"
)

// DefaultSettle is the minimum gap between two commands. The firmware drops
// a command that arrives while it is still processing the previous one.
const DefaultSettle = 50 * time.Millisecond

// Session drives one power supply over an owned Transport. It is not safe for
// concurrent use; callers serialise access.
//
// Besides waiting for replies, an exchange may sleep before writing so that
// consecutive commands are at least the settle gap apart (DefaultSettle,
// see WithSettle). WithSettle(0) removes the pause.
type Session struct {
	t        *serialpkg.Transport
	profile  *models.Profile
	observer Observer
	timeout  time.Duration
	settle   time.Duration

	lastWrite time.Time
}

// Option configures a Session.
type Option func(*Session)

// WithObserver reports every exchange to o.
func WithObserver(o Observer) Option {
	return func(s *Session) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithTimeout sets the reply window of each exchange. Zero keeps the
// transport default.
func WithTimeout(d time.Duration) Option {
	return func(s *Session) { s.timeout = d }
}

// WithSettle sets the minimum gap between commands.
func WithSettle(d time.Duration) Option {
	return func(s *Session) {
		if d >= 0 {
			s.settle = d
		}
	}
}

// NewSession binds t to a private copy of profile p. The Session takes
// ownership of t.
func NewSession(t *serialpkg.Transport, p *models.Profile, opts ...Option) *Session {
	s := &Session{
		t:        t,
		profile:  p.Clone(),
		observer: NoopObserver{},
		settle:   DefaultSettle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Profile returns a copy of the model this session is bound to. Changing it
// does not affect the session's limits.
func (s *Session) Profile() *models.Profile { return s.profile.Clone() }

// Close releases the transport. It is safe to call more than once.
func (s *Session) Close() error {
	if s == nil || s.t == nil {
		return nil
	}
	return s.t.Close()
}

// exchange writes cmd and reads the reply its kind calls for.
func (s *Session) exchange(cmd protocol.Command) ([]byte, error) {
	if wait := s.settle - time.Since(s.lastWrite); wait > 0 && !s.lastWrite.IsZero() {
		time.Sleep(wait)
	}
	sent := cmd.Bytes(s.profile.CommandEOL)
	start := time.Now()
	err := s.t.WriteRaw(sent)
	s.lastWrite = time.Now()

	var reply []byte
	if err == nil {
		switch cmd.Reply {
		case protocol.ReplyLine:
			reply, err = s.t.ReadUntil([]byte(s.profile.ReplyEOL), s.timeout)
		case protocol.ReplyStatus:
			reply, err = s.t.ReadN(s.profile.StatusLength, s.timeout)
		}
	}
	s.observer.Exchange(ExchangeEvent{
		Op:       cmd.Op,
		Sent:     sent,
		Received: reply,
		Err:      err,
		Elapsed:  time.Since(start),
	})
	if err != nil {
		return nil, s.wrap(cmd.Op, err)
	}
	return reply, nil
}

func (s *Session) wrap(op string, err error) error {
	return &OpError{Op: op, Model: s.profile.Name, Err: err}
}

func (s *Session) unsupported(op string) error {
	return &UnsupportedOperationError{Op: op, Model: s.profile.Name}
}

func (s *Session) channel(op string, ch int) (models.ChannelLimits, error) {
	lim, ok := s.profile.Channel(ch)
	if !ok {
		return lim, &OutOfRangeError{Op: op, Field: "channel", Value: ch, Min: 1, Max: s.profile.NumChannels()}
	}
	return lim, nil
}

func (s *Session) checkVoltage(op string, ch, mV int) error {
	lim, err := s.channel(op, ch)
	if err != nil {
		return err
	}
	if len(lim.FixedMillivolts) > 0 {
		if !slices.Contains(lim.FixedMillivolts, mV) {
			return &OutOfRangeError{Op: op, Field: "millivolts", Value: mV, Min: lim.MinMillivolts, Max: lim.MaxMillivolts, Allowed: lim.FixedMillivolts}
		}
		return nil
	}
	return checkValue(op, "millivolts", mV, lim.MinMillivolts, lim.MaxMillivolts, s.profile.Voltage.Step())
}

func (s *Session) checkCurrent(op string, ch, mA int) error {
	lim, err := s.channel(op, ch)
	if err != nil {
		return err
	}
	return checkValue(op, "milliamps", mA, lim.MinMilliamps, lim.MaxMilliamps, s.profile.Current.Step())
}

func checkValue(op, field string, v, lo, hi, step int) error {
	if v < lo || v > hi {
		return &OutOfRangeError{Op: op, Field: field, Value: v, Min: lo, Max: hi}
	}
	if v%step != 0 {
		return &OutOfRangeError{Op: op, Field: field, Value: v, Min: lo, Max: hi,
			Reason: fmt.Sprintf("is not a multiple of %d", step)}
	}
	return nil
}

func (s *Session) send(cmd protocol.Command) error {
	_, err := s.exchange(cmd)
	return err
}

// Identification returns the trimmed *IDN? reply.
func (s *Session) Identification() (string, error) {
	reply, err := s.exchange(protocol.Identify())
	if err != nil {
		return "", err
	}
	id, err := protocol.DecodeIdentification(reply, s.profile.ReplyEOL)
	if err != nil {
		return "", s.wrap(protocol.OpIdentify, err)
	}
	return id, nil
}

// SetVoltage sets the voltage setpoint of channel ch.
func (s *Session) SetVoltage(ch, mV int) error {
	if err := s.checkVoltage(protocol.OpSetVoltage, ch, mV); err != nil {
		return err
	}
	cmd, err := protocol.SetVoltage(ch, mV, s.profile.Voltage)
	if err != nil {
		return s.wrap(protocol.OpSetVoltage, err)
	}
	return s.send(cmd)
}

// SetCurrent sets the current limit of channel ch.
func (s *Session) SetCurrent(ch, mA int) error {
	if err := s.checkCurrent(protocol.OpSetCurrent, ch, mA); err != nil {
		return err
	}
	cmd, err := protocol.SetCurrent(ch, mA, s.profile.Current)
	if err != nil {
		return s.wrap(protocol.OpSetCurrent, err)
	}
	return s.send(cmd)
}

func (s *Session) readMillis(cmd protocol.Command, f models.FieldFormat) (int, error) {
	reply, err := s.exchange(cmd)
	if err != nil {
		return 0, err
	}
	v, err := protocol.DecodeMillis(cmd.Op, reply, s.profile.ReplyEOL, f)
	if err != nil {
		return 0, s.wrap(cmd.Op, err)
	}
	return v, nil
}

// ReadVoltage returns the voltage setpoint of channel ch.
func (s *Session) ReadVoltage(ch int) (int, error) {
	if _, err := s.channel(protocol.OpReadVoltage, ch); err != nil {
		return 0, err
	}
	return s.readMillis(protocol.ReadVoltage(ch), s.profile.Voltage)
}

// ReadOutputVoltage returns the measured output voltage of channel ch.
func (s *Session) ReadOutputVoltage(ch int) (int, error) {
	if _, err := s.channel(protocol.OpReadOutputVoltage, ch); err != nil {
		return 0, err
	}
	return s.readMillis(protocol.ReadOutputVoltage(ch), s.profile.Voltage)
}

// ReadCurrent returns the current limit setpoint of channel ch.
func (s *Session) ReadCurrent(ch int) (int, error) {
	return s.readCurrent(protocol.ReadCurrent(ch), ch)
}

// ReadOutputCurrent returns the measured output current of channel ch.
func (s *Session) ReadOutputCurrent(ch int) (int, error) {
	return s.readCurrent(protocol.ReadOutputCurrent(ch), ch)
}

func (s *Session) readCurrent(cmd protocol.Command, ch int) (int, error) {
	lim, err := s.channel(cmd.Op, ch)
	if err != nil {
		return 0, err
	}
	if !lim.CurrentReadback {
		return 0, s.unsupported(cmd.Op)
	}
	v, err := s.readMillis(cmd, s.profile.Current)
	if err != nil && s.profile.CurrentReadbackUnreliable && protocol.IsMalformed(err) {
		return 0, &unreliableError{err: err}
	}
	return v, err
}

// SetOutput switches the output on or off. Multi-output models switch every
// channel.
func (s *Session) SetOutput(on bool) error {
	if !s.profile.Output {
		return s.unsupported(protocol.OpOutput)
	}
	if s.profile.MultiOutput {
		return s.send(protocol.OutputAll(on))
	}
	return s.send(protocol.Output(on))
}

// SetChannelOutput switches a single channel of a multi-output model.
func (s *Session) SetChannelOutput(ch int, on bool) error {
	if !s.profile.MultiOutput {
		return s.unsupported(protocol.OpChannelOutput)
	}
	if _, err := s.channel(protocol.OpChannelOutput, ch); err != nil {
		return err
	}
	return s.send(protocol.ChannelOutput(ch, on))
}

func (s *Session) SetBeep(on bool) error {
	if !s.profile.Beep {
		return s.unsupported(protocol.OpBeep)
	}
	return s.send(protocol.Beep(on))
}

func (s *Session) SetOCP(on bool) error {
	if !s.profile.OverProtection {
		return s.unsupported(protocol.OpOCP)
	}
	return s.send(protocol.OCP(on))
}

func (s *Session) SetOVP(on bool) error {
	if !s.profile.OverProtection {
		return s.unsupported(protocol.OpOVP)
	}
	return s.send(protocol.OVP(on))
}

func (s *Session) SetLock(on bool) error {
	if !s.profile.Lock {
		return s.unsupported(protocol.OpLock)
	}
	return s.send(protocol.Lock(on))
}

func (s *Session) SetTracking(mode protocol.TrackingMode) error {
	if !s.profile.Tracking {
		return s.unsupported(protocol.OpTracking)
	}
	cmd, err := protocol.Tracking(mode)
	if err != nil {
		return &OutOfRangeError{Op: protocol.OpTracking, Field: "mode", Value: int(mode), Min: 0, Max: int(protocol.Parallel)}
	}
	return s.send(cmd)
}

func (s *Session) checkSlot(op string, slot int) error {
	if slot < 1 || slot > s.profile.MemorySlots {
		return &OutOfRangeError{Op: op, Field: "slot", Value: slot, Min: 1, Max: s.profile.MemorySlots}
	}
	return nil
}

// SaveMemory stores the panel settings in a memory slot. Some firmware only
// ever writes slot 1; see SaveFlow.
func (s *Session) SaveMemory(slot int) error {
	if err := s.checkSlot(protocol.OpSave, slot); err != nil {
		return err
	}
	return s.send(protocol.Save(slot))
}

// RecallMemory loads the settings of a memory slot.
func (s *Session) RecallMemory(slot int) error {
	if err := s.checkSlot(protocol.OpRecall, slot); err != nil {
		return err
	}
	return s.send(protocol.Recall(slot))
}

// ReadStatus reads and decodes the status block.
func (s *Session) ReadStatus() (protocol.Status, error) {
	reply, err := s.exchange(protocol.StatusQuery())
	if err != nil {
		return protocol.Status{}, err
	}
	st, err := protocol.DecodeStatus(reply, s.profile.StatusLayout, s.profile.StatusLength)
	if err != nil {
		return protocol.Status{}, s.wrap(protocol.OpStatus, err)
	}
	return st, nil
}
