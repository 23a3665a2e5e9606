package protocol

import (
	"strings"

	"github.com/CK6170/tenmadc-go/models"
)

// Mode is the regulation mode of a channel.
type Mode int

const (
	ModeCC Mode = iota
	ModeCV
)

func (m Mode) String() string {
	if m == ModeCV {
		return "CV"
	}
	return "CC"
}

// TrackingMode is how the outputs of a multi-channel supply are combined.
type TrackingMode int

const (
	Independent TrackingMode = iota
	Series
	Parallel
)

func (t TrackingMode) String() string {
	switch t {
	case Independent:
		return "independent"
	case Series:
		return "series"
	case Parallel:
		return "parallel"
	default:
		return "unknown"
	}
}

// ParseTracking accepts a mode name or its digit.
func ParseTracking(s string) (TrackingMode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "0", "independent", "indep":
		return Independent, true
	case "1", "series":
		return Series, true
	case "2", "parallel":
		return Parallel, true
	}
	return 0, false
}

// Status is the decoded STATUS? block.
type Status struct {
	Channel1Mode Mode         `json:"ch1_mode"`
	Channel2Mode Mode         `json:"ch2_mode"`
	Tracking     TrackingMode `json:"tracking"`
	Beep         bool         `json:"beep"`
	Lock         bool         `json:"lock"`
	// Output is true when any output is on.
	Output bool `json:"output"`
	// Outputs holds per-channel output bits on multi-output layouts.
	Outputs []bool `json:"outputs,omitempty"`
}

// DecodeStatus interprets a raw status block of exactly length bytes.
func DecodeStatus(b []byte, layout models.StatusLayout, length int) (Status, error) {
	if len(b) != length || length < 1 {
		return Status{}, malformed(OpStatus, b, "want %d bytes, got %d", length, len(b))
	}
	if length == 2 && b[1] != '\n' {
		return Status{}, malformed(OpStatus, b, "missing line terminator")
	}
	v := b[0]
	st := Status{
		Channel1Mode: modeBit(v, 0),
		Channel2Mode: modeBit(v, 1),
	}
	track := (v >> 2) & 0x03
	switch layout {
	case models.StatusClassic:
		switch track {
		case 0:
			st.Tracking = Independent
		case 1:
			st.Tracking = Series
		case 3:
			st.Tracking = Parallel
		default:
			return Status{}, malformed(OpStatus, b, "invalid tracking bits %02b", track)
		}
		st.Beep = v&(1<<4) != 0
		st.Lock = v&(1<<5) != 0
		st.Output = v&(1<<6) != 0
	case models.StatusMulti:
		if track == 3 {
			return Status{}, malformed(OpStatus, b, "invalid tracking bits %02b", track)
		}
		st.Tracking = TrackingMode(track)
		st.Outputs = []bool{v&(1<<6) != 0, v&(1<<7) != 0}
		st.Output = st.Outputs[0] || st.Outputs[1]
	default:
		return Status{}, malformed(OpStatus, b, "unknown layout %s", layout)
	}
	return st, nil
}

func modeBit(v byte, bit uint) Mode {
	if v&(1<<bit) != 0 {
		return ModeCV
	}
	return ModeCC
}
