package protocol

import (
	"fmt"

	"github.com/CK6170/tenmadc-go/models"
)

// ReplyKind is the shape of the reply a command provokes.
type ReplyKind int

const (
	ReplyNone ReplyKind = iota
	ReplyLine
	ReplyStatus
)

// Operation names, used in errors and observer events.
const (
	OpIdentify          = "identify"
	OpSetVoltage        = "set-voltage"
	OpSetCurrent        = "set-current"
	OpReadVoltage       = "read-voltage"
	OpReadCurrent       = "read-current"
	OpReadOutputVoltage = "read-output-voltage"
	OpReadOutputCurrent = "read-output-current"
	OpOutput            = "output"
	OpChannelOutput     = "channel-output"
	OpBeep              = "beep"
	OpSave              = "save"
	OpRecall            = "recall"
	OpStatus            = "status"
	OpOCP               = "ocp"
	OpOVP               = "ovp"
	OpLock              = "lock"
	OpTracking          = "tracking"
	OpVoltageAutoStep   = "voltage-auto-step"
	OpCurrentAutoStep   = "current-auto-step"
	OpStopVoltageStep   = "stop-voltage-step"
	OpStopCurrentStep   = "stop-current-step"
	OpVoltageStepSize   = "voltage-step-size"
	OpCurrentStepSize   = "current-step-size"
	OpStepVoltage       = "step-voltage"
	OpStepCurrent       = "step-current"
)

// Command is one request ready for the wire.
type Command struct {
	Op    string
	Text  string
	Reply ReplyKind
}

// Bytes renders the command followed by eol.
func (c Command) Bytes(eol string) []byte {
	return []byte(c.Text + eol)
}

func (c Command) String() string { return c.Text }

func flag(on bool) int {
	if on {
		return 1
	}
	return 0
}

func Identify() Command { return Command{Op: OpIdentify, Text: "*IDN?", Reply: ReplyLine} }

func SetVoltage(ch, mV int, f models.FieldFormat) (Command, error) {
	v, err := EncodeMillis(mV, f)
	if err != nil {
		return Command{}, err
	}
	return Command{Op: OpSetVoltage, Text: fmt.Sprintf("VSET%d:%s", ch, v)}, nil
}

func SetCurrent(ch, mA int, f models.FieldFormat) (Command, error) {
	v, err := EncodeMillis(mA, f)
	if err != nil {
		return Command{}, err
	}
	return Command{Op: OpSetCurrent, Text: fmt.Sprintf("ISET%d:%s", ch, v)}, nil
}

func ReadVoltage(ch int) Command {
	return Command{Op: OpReadVoltage, Text: fmt.Sprintf("VSET%d?", ch), Reply: ReplyLine}
}

func ReadCurrent(ch int) Command {
	return Command{Op: OpReadCurrent, Text: fmt.Sprintf("ISET%d?", ch), Reply: ReplyLine}
}

func ReadOutputVoltage(ch int) Command {
	return Command{Op: OpReadOutputVoltage, Text: fmt.Sprintf("VOUT%d?", ch), Reply: ReplyLine}
}

func ReadOutputCurrent(ch int) Command {
	return Command{Op: OpReadOutputCurrent, Text: fmt.Sprintf("IOUT%d?", ch), Reply: ReplyLine}
}

// Output switches a single-output supply.
func Output(on bool) Command {
	return Command{Op: OpOutput, Text: fmt.Sprintf("OUT%d", flag(on))}
}

// OutputAll switches every channel of a multi-output supply.
func OutputAll(on bool) Command {
	return Command{Op: OpOutput, Text: fmt.Sprintf("OUT12:%d", flag(on))}
}

// ChannelOutput switches one channel of a multi-output supply.
func ChannelOutput(ch int, on bool) Command {
	return Command{Op: OpChannelOutput, Text: fmt.Sprintf("OUT%d:%d", ch, flag(on))}
}

func Beep(on bool) Command { return Command{Op: OpBeep, Text: fmt.Sprintf("BEEP%d", flag(on))} }

func Save(slot int) Command { return Command{Op: OpSave, Text: fmt.Sprintf("SAV%d", slot)} }

func Recall(slot int) Command { return Command{Op: OpRecall, Text: fmt.Sprintf("RCL%d", slot)} }

func StatusQuery() Command { return Command{Op: OpStatus, Text: "STATUS?", Reply: ReplyStatus} }

func OCP(on bool) Command { return Command{Op: OpOCP, Text: fmt.Sprintf("OCP%d", flag(on))} }

func OVP(on bool) Command { return Command{Op: OpOVP, Text: fmt.Sprintf("OVP%d", flag(on))} }

func Lock(on bool) Command { return Command{Op: OpLock, Text: fmt.Sprintf("LOCK%d", flag(on))} }

// Tracking selects how the outputs are combined. Only the three defined modes
// can be sent.
func Tracking(mode TrackingMode) (Command, error) {
	if mode < Independent || mode > Parallel {
		return Command{}, fmt.Errorf("%w: tracking mode %d", ErrUnencodable, int(mode))
	}
	return Command{Op: OpTracking, Text: fmt.Sprintf("TRACK%d", int(mode))}, nil
}

// AutoStep describes a ramp from Start to Stop in Step increments, one step
// every Seconds. Values are milli-units.
type AutoStep struct {
	Start, Stop, Step int
	Seconds           int
}

func autoStep(op, prefix string, ch int, a AutoStep, f models.FieldFormat) (Command, error) {
	if a.Seconds <= 0 {
		return Command{}, fmt.Errorf("%w: step interval %ds", ErrUnencodable, a.Seconds)
	}
	fields := make([]string, 0, 3)
	for _, v := range []int{a.Start, a.Stop, a.Step} {
		s, err := EncodeMillis(v, f)
		if err != nil {
			return Command{}, err
		}
		fields = append(fields, s)
	}
	return Command{Op: op, Text: fmt.Sprintf("%s%d:%s,%s,%s,%d", prefix, ch, fields[0], fields[1], fields[2], a.Seconds)}, nil
}

func VoltageAutoStep(ch int, a AutoStep, f models.FieldFormat) (Command, error) {
	return autoStep(OpVoltageAutoStep, "VASTEP", ch, a, f)
}

func CurrentAutoStep(ch int, a AutoStep, f models.FieldFormat) (Command, error) {
	return autoStep(OpCurrentAutoStep, "IASTEP", ch, a, f)
}

func StopVoltageStep(ch int) Command {
	return Command{Op: OpStopVoltageStep, Text: fmt.Sprintf("VASTOP%d", ch)}
}

func StopCurrentStep(ch int) Command {
	return Command{Op: OpStopCurrentStep, Text: fmt.Sprintf("IASTOP%d", ch)}
}

func VoltageStepSize(ch, mV int, f models.FieldFormat) (Command, error) {
	v, err := EncodeMillis(mV, f)
	if err != nil {
		return Command{}, err
	}
	return Command{Op: OpVoltageStepSize, Text: fmt.Sprintf("VSTEP%d:%s", ch, v)}, nil
}

func CurrentStepSize(ch, mA int, f models.FieldFormat) (Command, error) {
	v, err := EncodeMillis(mA, f)
	if err != nil {
		return Command{}, err
	}
	return Command{Op: OpCurrentStepSize, Text: fmt.Sprintf("ISTEP%d:%s", ch, v)}, nil
}

// StepVoltage moves the voltage by the configured step size.
func StepVoltage(ch int, up bool) Command {
	dir := "DOWN"
	if up {
		dir = "UP"
	}
	return Command{Op: OpStepVoltage, Text: fmt.Sprintf("V%s%d", dir, ch)}
}

// StepCurrent moves the current by the configured step size.
func StepCurrent(ch int, up bool) Command {
	dir := "DOWN"
	if up {
		dir = "UP"
	}
	return Command{Op: OpStepCurrent, Text: fmt.Sprintf("I%s%d", dir, ch)}
}
