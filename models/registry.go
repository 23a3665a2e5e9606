package models

import "strings"

var (
	voltageFormat     = FieldFormat{IntDigits: 2, FracDigits: 2}
	currentFormat     = FieldFormat{IntDigits: 1, FracDigits: 3}
	wideCurrentFormat = FieldFormat{IntDigits: 2, FracDigits: 3}
)

// single builds a one-channel, single-output profile.
func single(name string, maxMV, maxMA int, match ...string) *Profile {
	if len(match) == 0 {
		match = []string{name}
	}
	return &Profile{
		Name:         name,
		MatchStrings: match,
		Channels: []ChannelLimits{
			{MaxMillivolts: maxMV, MaxMilliamps: maxMA, CurrentReadback: true},
		},
		Voltage:        voltageFormat,
		Current:        currentFormat,
		MemorySlots:    5,
		StatusLength:   1,
		StatusLayout:   StatusClassic,
		Output:         true,
		Beep:           true,
		OverProtection: true,
	}
}

// triple builds a 72-133xx style profile: two adjustable channels plus a
// fixed-voltage third channel without current readback.
func triple(name string, maxMA int, match ...string) *Profile {
	if len(match) == 0 {
		match = []string{name}
	}
	adjustable := ChannelLimits{MaxMillivolts: 30000, MaxMilliamps: maxMA, CurrentReadback: true}
	return &Profile{
		Name:         name,
		MatchStrings: match,
		Channels: []ChannelLimits{
			adjustable,
			adjustable,
			{MinMillivolts: 2500, MaxMillivolts: 5000, FixedMillivolts: []int{2500, 3300, 5000}, MaxMilliamps: maxMA},
		},
		Voltage: voltageFormat,
		Current: currentFormat,
		// The unit stores 10 presets but none are addressable from the front panel.
		MemorySlots:  0,
		CommandEOL:   "\n",
		ReplyEOL:     "\n",
		StatusLength: 2,
		StatusLayout: StatusMulti,
		Output:       true,
		MultiOutput:  true,
		Lock:         true,
		Tracking:     true,
		Stepping:     true,
	}
}

var registry = func() []*Profile {
	p2550 := single("72-2550", 60000, 3000, "72-2550", "KORADKA6003P")
	p2550.CurrentReadbackUnreliable = true
	p2550.Note = "also sold as Korad KA6003P; ISET? replies carry a stray trailing byte"

	p2930 := single("72-2930", 30000, 10000)
	p2930.Current = wideCurrentFormat

	family := triple("72-133", 3000)
	family.Note = "72-133xx family fallback with conservative limits"

	return []*Profile{
		single("72-2535", 30000, 3000),
		single("72-2540", 30000, 5000),
		single("72-2545", 60000, 2000),
		p2550,
		single("72-2705", 31000, 3100),
		p2930,
		single("72-2940", 60000, 5000),
		family,
		triple("72-13320", 3000),
		triple("72-13330", 5000),
	}
}()

// All returns a copy of every known profile in registry order. Profiles
// handed out by this package are clones; the registry itself never changes.
func All() []*Profile {
	out := make([]*Profile, 0, len(registry))
	for _, p := range registry {
		out = append(out, p.Clone())
	}
	return out
}

// ByName returns the profile with the exact given name.
func ByName(name string) (*Profile, bool) {
	for _, p := range registry {
		if strings.EqualFold(p.Name, name) {
			return p.Clone(), true
		}
	}
	return nil, false
}

// Names lists profile names in registry order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for _, p := range registry {
		names = append(names, p.Name)
	}
	return names
}

// Lookup matches an identification string against the registry. When several
// match strings are contained in id the longest wins, so "72-13320" beats
// "72-133". Equal lengths resolve to the earlier registry entry.
func Lookup(id string) (*Profile, bool) {
	var (
		best    *Profile
		bestLen int
	)
	for _, p := range registry {
		for _, m := range p.MatchStrings {
			if m == "" || !strings.Contains(id, m) {
				continue
			}
			if len(m) > bestLen {
				best, bestLen = p, len(m)
			}
		}
	}
	if best == nil {
		return nil, false
	}
	return best.Clone(), true
}
