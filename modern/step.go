package modern

import (
	"github.com/CK6170/tenmadc-go/models"
	"github.com/CK6170/tenmadc-go/protocol"
)

// stepChannel validates a stepping request on channel ch. Fixed-voltage
// channels cannot be stepped.
func (s *Session) stepChannel(op string, ch int) (models.ChannelLimits, error) {
	if !s.profile.Stepping {
		return models.ChannelLimits{}, s.unsupported(op)
	}
	lim, err := s.channel(op, ch)
	if err != nil {
		return lim, err
	}
	if len(lim.FixedMillivolts) > 0 {
		return lim, s.unsupported(op)
	}
	return lim, nil
}

func checkRamp(op, field string, a protocol.AutoStep, lo, hi, step int) error {
	for _, v := range []int{a.Start, a.Stop} {
		if err := checkValue(op, field, v, lo, hi, step); err != nil {
			return err
		}
	}
	span := a.Stop - a.Start
	if span < 0 {
		span = -span
	}
	if err := checkValue(op, "step", a.Step, step, span, step); err != nil {
		return err
	}
	if a.Seconds <= 0 {
		return &OutOfRangeError{Op: op, Field: "seconds", Value: a.Seconds, Min: 1, Max: 99}
	}
	return nil
}

// StartVoltageStep ramps the voltage of channel ch from a.Start to a.Stop.
func (s *Session) StartVoltageStep(ch int, a protocol.AutoStep) error {
	op := protocol.OpVoltageAutoStep
	lim, err := s.stepChannel(op, ch)
	if err != nil {
		return err
	}
	if err := checkRamp(op, "millivolts", a, lim.MinMillivolts, lim.MaxMillivolts, s.profile.Voltage.Step()); err != nil {
		return err
	}
	cmd, err := protocol.VoltageAutoStep(ch, a, s.profile.Voltage)
	if err != nil {
		return s.wrap(op, err)
	}
	return s.send(cmd)
}

// StartCurrentStep ramps the current limit of channel ch from a.Start to a.Stop.
func (s *Session) StartCurrentStep(ch int, a protocol.AutoStep) error {
	op := protocol.OpCurrentAutoStep
	lim, err := s.stepChannel(op, ch)
	if err != nil {
		return err
	}
	if err := checkRamp(op, "milliamps", a, lim.MinMilliamps, lim.MaxMilliamps, s.profile.Current.Step()); err != nil {
		return err
	}
	cmd, err := protocol.CurrentAutoStep(ch, a, s.profile.Current)
	if err != nil {
		return s.wrap(op, err)
	}
	return s.send(cmd)
}

func (s *Session) StopVoltageStep(ch int) error {
	if _, err := s.stepChannel(protocol.OpStopVoltageStep, ch); err != nil {
		return err
	}
	return s.send(protocol.StopVoltageStep(ch))
}

func (s *Session) StopCurrentStep(ch int) error {
	if _, err := s.stepChannel(protocol.OpStopCurrentStep, ch); err != nil {
		return err
	}
	return s.send(protocol.StopCurrentStep(ch))
}

// SetVoltageStepSize sets the increment used by StepVoltage.
func (s *Session) SetVoltageStepSize(ch, mV int) error {
	op := protocol.OpVoltageStepSize
	lim, err := s.stepChannel(op, ch)
	if err != nil {
		return err
	}
	if err := checkValue(op, "millivolts", mV, s.profile.Voltage.Step(), lim.MaxMillivolts, s.profile.Voltage.Step()); err != nil {
		return err
	}
	cmd, err := protocol.VoltageStepSize(ch, mV, s.profile.Voltage)
	if err != nil {
		return s.wrap(op, err)
	}
	return s.send(cmd)
}

// SetCurrentStepSize sets the increment used by StepCurrent.
func (s *Session) SetCurrentStepSize(ch, mA int) error {
	op := protocol.OpCurrentStepSize
	lim, err := s.stepChannel(op, ch)
	if err != nil {
		return err
	}
	if err := checkValue(op, "milliamps", mA, s.profile.Current.Step(), lim.MaxMilliamps, s.profile.Current.Step()); err != nil {
		return err
	}
	cmd, err := protocol.CurrentStepSize(ch, mA, s.profile.Current)
	if err != nil {
		return s.wrap(op, err)
	}
	return s.send(cmd)
}

func (s *Session) StepVoltage(ch int, up bool) error {
	if _, err := s.stepChannel(protocol.OpStepVoltage, ch); err != nil {
		return err
	}
	return s.send(protocol.StepVoltage(ch, up))
}

func (s *Session) StepCurrent(ch int, up bool) error {
	if _, err := s.stepChannel(protocol.OpStepCurrent, ch); err != nil {
		return err
	}
	return s.send(protocol.StepCurrent(ch, up))
}
