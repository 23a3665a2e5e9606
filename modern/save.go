package modern

import (
	"github.com/CK6170/tenmadc-go/protocol"
)

// SaveFlow stores the current setpoints of channel ch in slot on firmware
// that ignores the slot number of SAV<n>. The output is switched off, the
// slot is recalled so the panel addresses it, the setpoints are re-applied
// and then saved. The output stays off afterwards.
func SaveFlow(s *Session, slot, ch int) error {
	if err := s.checkSlot(protocol.OpSave, slot); err != nil {
		return err
	}
	if err := s.SetOutput(false); err != nil {
		return err
	}
	mV, err := s.ReadVoltage(ch)
	if err != nil {
		return err
	}
	mA, err := s.ReadCurrent(ch)
	if err != nil {
		return err
	}
	if err := s.RecallMemory(slot); err != nil {
		return err
	}
	if err := s.SetVoltage(ch, mV); err != nil {
		return err
	}
	if err := s.SetCurrent(ch, mA); err != nil {
		return err
	}
	return s.SaveMemory(slot)
}
