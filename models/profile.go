package models

import (
	"fmt"
	"slices"
)

// StatusLayout selects how the STATUS? block is interpreted.
type StatusLayout int

const (
	// StatusClassic is the single-output layout: modes, tracking, beep, lock, output.
	StatusClassic StatusLayout = iota
	// StatusMulti is the 72-133xx layout: modes, tracking, out1, out2.
	StatusMulti
)

func (l StatusLayout) String() string {
	switch l {
	case StatusClassic:
		return "classic"
	case StatusMulti:
		return "multi"
	default:
		return fmt.Sprintf("layout(%d)", int(l))
	}
}

// FieldFormat is a fixed-point decimal field on the wire: IntDigits before the
// point, FracDigits after it. 2/2 renders 5000 mV as "05.00".
type FieldFormat struct {
	IntDigits  int `json:"int_digits" yaml:"int_digits"`
	FracDigits int `json:"frac_digits" yaml:"frac_digits"`
}

// Width is the rendered field length including the decimal point.
func (f FieldFormat) Width() int { return f.IntDigits + 1 + f.FracDigits }

// Step is the resolution in milli-units (mV or mA) of one least significant digit.
func (f FieldFormat) Step() int {
	step := 1
	for i := f.FracDigits; i < 3; i++ {
		step *= 10
	}
	return step
}

// Max is the largest milli-unit value the field can carry.
func (f FieldFormat) Max() int {
	n := 1
	for i := 0; i < f.IntDigits+f.FracDigits; i++ {
		n *= 10
	}
	return (n - 1) * f.Step()
}

// ChannelLimits are the operating limits of one output channel.
type ChannelLimits struct {
	MinMillivolts int `json:"min_mv" yaml:"min_mv"`
	MaxMillivolts int `json:"max_mv" yaml:"max_mv"`
	// FixedMillivolts, when non-empty, is the only set of accepted voltages.
	FixedMillivolts []int `json:"fixed_mv,omitempty" yaml:"fixed_mv,omitempty"`
	MinMilliamps    int   `json:"min_ma" yaml:"min_ma"`
	MaxMilliamps    int   `json:"max_ma" yaml:"max_ma"`
	CurrentReadback bool  `json:"current_readback" yaml:"current_readback"`
}

// Profile describes one hardware variant. Profiles live in the static registry
// and are never mutated after package initialisation.
type Profile struct {
	Name         string          `json:"name" yaml:"name"`
	MatchStrings []string        `json:"match" yaml:"match"`
	Channels     []ChannelLimits `json:"channels" yaml:"channels"`
	Voltage      FieldFormat     `json:"voltage_format" yaml:"voltage_format"`
	Current      FieldFormat     `json:"current_format" yaml:"current_format"`
	MemorySlots  int             `json:"memory_slots" yaml:"memory_slots"`

	CommandEOL   string       `json:"command_eol" yaml:"command_eol"`
	ReplyEOL     string       `json:"reply_eol" yaml:"reply_eol"`
	StatusLength int          `json:"status_length" yaml:"status_length"`
	StatusLayout StatusLayout `json:"status_layout" yaml:"status_layout"`

	Output         bool `json:"output" yaml:"output"`
	MultiOutput    bool `json:"multi_output" yaml:"multi_output"`
	Beep           bool `json:"beep" yaml:"beep"`
	OverProtection bool `json:"over_protection" yaml:"over_protection"`
	Lock           bool `json:"lock" yaml:"lock"`
	Tracking       bool `json:"tracking" yaml:"tracking"`
	Stepping       bool `json:"stepping" yaml:"stepping"`

	// CurrentReadbackUnreliable marks firmware known to corrupt ISET? replies
	// (72-2550 appends a stray byte). Reads are still attempted.
	CurrentReadbackUnreliable bool `json:"current_readback_unreliable" yaml:"current_readback_unreliable"`

	Note string `json:"note,omitempty" yaml:"note,omitempty"`
}

// NumChannels is the number of output channels.
func (p *Profile) NumChannels() int { return len(p.Channels) }

// Channel returns the limits of a 1-based channel.
func (p *Profile) Channel(ch int) (ChannelLimits, bool) {
	if ch < 1 || ch > len(p.Channels) {
		return ChannelLimits{}, false
	}
	return p.Channels[ch-1], true
}

func (p *Profile) String() string { return p.Name }

// Clone returns a deep copy of p.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	c.MatchStrings = slices.Clone(p.MatchStrings)
	c.Channels = make([]ChannelLimits, len(p.Channels))
	for i, ch := range p.Channels {
		ch.FixedMillivolts = slices.Clone(ch.FixedMillivolts)
		c.Channels[i] = ch
	}
	return &c
}
