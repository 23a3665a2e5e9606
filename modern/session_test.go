package modern

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CK6170/tenmadc-go/protocol"
	serialpkg "github.com/CK6170/tenmadc-go/serial"
)

func TestDetectSingleOutputAndSetVoltage(t *testing.T) {
	dev := newSim("", map[string]string{"*IDN?": "TENMA 72-2540 V2.1"})
	s, err := Detect(simFactory(dev), "sim", WithSessionOptions(WithSettle(0)))
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, "72-2540", s.Profile().Name)

	dev.reset()
	require.NoError(t, s.SetVoltage(1, 5000))
	assert.Equal(t, []string{"VSET1:05.00"}, dev.sent())
}

func TestDetectPrefersLongestMatch(t *testing.T) {
	dev := newSim("\n", map[string]string{"*IDN?": "TENMA 72-13320 V3.3\n"})
	s, err := Detect(simFactory(dev), "sim", WithSessionOptions(WithSettle(0)))
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, "72-13320", s.Profile().Name)
	// The unterminated probe goes unanswered, the newline dialect is tried next.
	assert.Equal(t, []string{"*IDN?", "*IDN?\n"}, dev.sent())
}

func TestDetectUnknownModel(t *testing.T) {
	dev := newSim("", map[string]string{"*IDN?": "RIGOL DP832"})
	s, err := Detect(simFactory(dev), "sim")
	assert.Nil(t, s)
	var um *UnknownModelError
	require.ErrorAs(t, err, &um)
	assert.Equal(t, "RIGOL DP832", um.ID)
	assert.Equal(t, 1, dev.closeCount())
}

func TestDetectFallback(t *testing.T) {
	dev := newSim("", map[string]string{"*IDN?": "KORAD KD3005P V2.0"})
	rec := &recorder{}
	s, err := Detect(simFactory(dev), "sim",
		WithFallback("72-2540"),
		WithSessionOptions(WithSettle(0), WithObserver(rec)))
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, "72-2540", s.Profile().Name)
	assert.Contains(t, rec.ops(), OpDetectFallback)

	_, err = Detect(simFactory(dev), "sim", WithFallback("72-0000"))
	assert.True(t, IsUnknownModel(err))
}

func TestDetectSilentDeviceClosesTransport(t *testing.T) {
	dev := newSim("", nil)
	_, err := Detect(simFactory(dev), "sim")
	assert.True(t, IsTimeout(err))
	assert.Equal(t, 1, dev.closeCount())
	assert.Len(t, dev.sent(), 2)
}

func TestDetectFactoryError(t *testing.T) {
	_, err := Detect(SerialFactory(9600, time.Second), "/dev/does-not-exist-tenma")
	assert.True(t, serialpkg.IsConnection(err))
}

func TestOpenUnknownModel(t *testing.T) {
	_, err := Open(simFactory(newSim("", nil)), "sim", "72-9999")
	assert.True(t, IsUnknownModel(err))
}

func TestSilentDeviceTimesOut(t *testing.T) {
	dev := newSim("", nil)
	s := openSim(dev, "72-2540", WithTimeout(100*time.Millisecond))

	start := time.Now()
	_, err := s.ReadVoltage(1)
	elapsed := time.Since(start)

	var te *serialpkg.TimeoutError
	require.ErrorAs(t, err, &te)
	var oe *OpError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, protocol.OpReadVoltage, oe.Op)
	assert.Less(t, elapsed, 600*time.Millisecond)
}

func TestOutOfRangeWritesNothing(t *testing.T) {
	singleDev, tripleDev := newSim("", nil), newSim("\n", nil)
	single := openSim(singleDev, "72-2540")
	triple := openSim(tripleDev, "72-13320")

	tests := []struct {
		name string
		s    *Session
		call func(s *Session) error
	}{
		{"voltage above max", single, func(s *Session) error { return s.SetVoltage(1, 30010) }},
		{"voltage off grid", single, func(s *Session) error { return s.SetVoltage(1, 5005) }},
		{"negative voltage", single, func(s *Session) error { return s.SetVoltage(1, -10) }},
		{"current above max", single, func(s *Session) error { return s.SetCurrent(1, 5001) }},
		{"channel 2 on single", single, func(s *Session) error { return s.SetVoltage(2, 1000) }},
		{"channel 0", single, func(s *Session) error { _, err := s.ReadVoltage(0); return err }},
		{"slot 0", single, func(s *Session) error { return s.SaveMemory(0) }},
		{"slot 6", single, func(s *Session) error { return s.RecallMemory(6) }},
		{"no slots", triple, func(s *Session) error { return s.SaveMemory(1) }},
		{"fixed channel value", triple, func(s *Session) error { return s.SetVoltage(3, 4000) }},
		{"tracking mode", triple, func(s *Session) error { return s.SetTracking(protocol.TrackingMode(3)) }},
		{"save flow slot", single, func(s *Session) error { return SaveFlow(s, 9, 1) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call(tt.s)
			assert.True(t, IsOutOfRange(err), "got %v", err)
		})
	}
	assert.Empty(t, singleDev.sent())
	assert.Empty(t, tripleDev.sent())
}

func TestOutOfRangeNoBytes(t *testing.T) {
	dev := newSim("", nil)
	s := openSim(dev, "72-2545")
	err := s.SetVoltage(1, 60010)
	var oe *OutOfRangeError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, 60000, oe.Max)
	assert.Empty(t, dev.sent())
}

func TestFixedVoltageChannel(t *testing.T) {
	dev := newSim("\n", nil)
	s := openSim(dev, "72-13320")

	err := s.SetVoltage(3, 4000)
	var oe *OutOfRangeError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, []int{2500, 3300, 5000}, oe.Allowed)

	require.NoError(t, s.SetVoltage(3, 3300))
	assert.Equal(t, []string{"VSET3:03.30\n"}, dev.sent())
}

func TestUnsupportedOperations(t *testing.T) {
	singleDev := newSim("", nil)
	single := openSim(singleDev, "72-2540")
	tripleDev := newSim("\n", nil)
	triple := openSim(tripleDev, "72-13320")

	_, err := triple.ReadCurrent(3)
	assert.True(t, IsUnsupported(err))
	_, err = triple.ReadOutputCurrent(3)
	assert.True(t, IsUnsupported(err))
	assert.True(t, IsUnsupported(triple.SetBeep(true)))
	assert.True(t, IsUnsupported(triple.SetOCP(true)))
	assert.True(t, IsUnsupported(single.SetLock(true)))
	assert.True(t, IsUnsupported(single.SetTracking(protocol.Series)))
	assert.True(t, IsUnsupported(single.SetChannelOutput(1, true)))
	assert.True(t, IsUnsupported(single.StepVoltage(1, true)))

	assert.Empty(t, singleDev.sent())
	assert.Empty(t, tripleDev.sent())
}

func TestUnreliableCurrentReadback(t *testing.T) {
	dev := newSim("", map[string]string{
		"ISET1?": "2.000\x01",
		"VSET1?": "12.00",
	})
	s := openSim(dev, "72-2550")

	_, err := s.ReadCurrent(1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnreliableReadback)
	assert.True(t, IsMalformed(err))

	mv, err := s.ReadVoltage(1)
	require.NoError(t, err)
	assert.Equal(t, 12000, mv)
}

func TestMalformedReplyIsNotUnreliableElsewhere(t *testing.T) {
	dev := newSim("", map[string]string{"ISET1?": "2.000\x01"})
	s := openSim(dev, "72-2540")

	_, err := s.ReadCurrent(1)
	assert.True(t, IsMalformed(err))
	assert.False(t, errors.Is(err, ErrUnreliableReadback))
}

func TestReads(t *testing.T) {
	dev := newSim("", map[string]string{
		"VSET1?": "05.00",
		"ISET1?": "1.500",
		"VOUT1?": "04.98",
		"IOUT1?": "0.250",
		"*IDN?":  "TENMA 72-2540 V2.1",
	})
	s := openSim(dev, "72-2540")

	mv, err := s.ReadVoltage(1)
	require.NoError(t, err)
	assert.Equal(t, 5000, mv)

	ma, err := s.ReadCurrent(1)
	require.NoError(t, err)
	assert.Equal(t, 1500, ma)

	mv, err = s.ReadOutputVoltage(1)
	require.NoError(t, err)
	assert.Equal(t, 4980, mv)

	ma, err = s.ReadOutputCurrent(1)
	require.NoError(t, err)
	assert.Equal(t, 250, ma)

	id, err := s.Identification()
	require.NoError(t, err)
	assert.Equal(t, "TENMA 72-2540 V2.1", id)
}

func TestSingleOutputCommands(t *testing.T) {
	dev := newSim("", nil)
	s := openSim(dev, "72-2540")

	require.NoError(t, s.SetCurrent(1, 1500))
	require.NoError(t, s.SetOutput(true))
	require.NoError(t, s.SetOutput(false))
	require.NoError(t, s.SetBeep(false))
	require.NoError(t, s.SetOCP(true))
	require.NoError(t, s.SetOVP(false))
	require.NoError(t, s.SaveMemory(5))
	require.NoError(t, s.RecallMemory(1))

	assert.Equal(t, []string{"ISET1:1.500", "OUT1", "OUT0", "BEEP0", "OCP1", "OVP0", "SAV5", "RCL1"}, dev.sent())
}

func TestMultiOutputCommands(t *testing.T) {
	dev := newSim("\n", nil)
	rec := &recorder{}
	s := openSim(dev, "72-13330", WithObserver(rec))

	require.NoError(t, s.SetOutput(true))
	require.NoError(t, s.SetChannelOutput(2, false))
	require.NoError(t, s.SetLock(true))
	require.NoError(t, s.SetTracking(protocol.Series))
	require.NoError(t, s.SetCurrent(1, 5000))

	assert.Equal(t, []string{"OUT12:1\n", "OUT2:0\n", "LOCK1\n", "TRACK1\n", "ISET1:5.000\n"}, dev.sent())
	assert.Equal(t, []string{protocol.OpOutput, protocol.OpChannelOutput, protocol.OpLock, protocol.OpTracking, protocol.OpSetCurrent}, rec.ops())
}

func TestReadStatus(t *testing.T) {
	dev := newSim("", map[string]string{"STATUS?": "\x51"})
	st, err := openSim(dev, "72-2540").ReadStatus()
	require.NoError(t, err)
	assert.True(t, st.Output)
	assert.True(t, st.Beep)
	assert.Equal(t, protocol.ModeCV, st.Channel1Mode)

	dev = newSim("\n", map[string]string{"STATUS?": "\xC1\n"})
	st, err = openSim(dev, "72-13320").ReadStatus()
	require.NoError(t, err)
	assert.Equal(t, []bool{true, true}, st.Outputs)

	dev = newSim("\n", map[string]string{"STATUS?": "\x0C\n"})
	_, err = openSim(dev, "72-13320").ReadStatus()
	assert.True(t, IsMalformed(err))
	var oe *OpError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, protocol.OpStatus, oe.Op)
}

func TestStepping(t *testing.T) {
	dev := newSim("\n", nil)
	s := openSim(dev, "72-13320")

	require.NoError(t, s.StartVoltageStep(1, protocol.AutoStep{Start: 1000, Stop: 5000, Step: 500, Seconds: 2}))
	require.NoError(t, s.StopVoltageStep(1))
	require.NoError(t, s.StartCurrentStep(2, protocol.AutoStep{Start: 1000, Stop: 100, Step: 100, Seconds: 1}))
	require.NoError(t, s.StopCurrentStep(2))
	require.NoError(t, s.SetVoltageStepSize(1, 100))
	require.NoError(t, s.SetCurrentStepSize(1, 10))
	require.NoError(t, s.StepVoltage(1, true))
	require.NoError(t, s.StepCurrent(1, false))

	assert.Equal(t, []string{
		"VASTEP1:01.00,05.00,00.50,2\n",
		"VASTOP1\n",
		"IASTEP2:1.000,0.100,0.100,1\n",
		"IASTOP2\n",
		"VSTEP1:00.10\n",
		"ISTEP1:0.010\n",
		"VUP1\n",
		"IDOWN1\n",
	}, dev.sent())

	dev.reset()
	assert.True(t, IsOutOfRange(s.StartVoltageStep(1, protocol.AutoStep{Start: 1000, Stop: 2000, Step: 1500, Seconds: 1})))
	assert.True(t, IsOutOfRange(s.StartVoltageStep(1, protocol.AutoStep{Start: 1000, Stop: 2000, Step: 100})))
	assert.True(t, IsUnsupported(s.StepVoltage(3, true)))
	assert.True(t, IsOutOfRange(s.SetVoltageStepSize(1, 0)))
	assert.Empty(t, dev.sent())
}

func TestCloseIdempotent(t *testing.T) {
	dev := newSim("", nil)
	s := openSim(dev, "72-2540")
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 1, dev.closeCount())
}

func TestSettleGap(t *testing.T) {
	dev := newSim("", nil)
	s := openSim(dev, "72-2540", WithSettle(40*time.Millisecond))

	start := time.Now()
	require.NoError(t, s.SetOutput(true))
	require.NoError(t, s.SetOutput(false))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestProfileCopyCannotWidenLimits(t *testing.T) {
	dev := newSim("", nil)
	s := openSim(dev, "72-2540")

	p := s.Profile()
	p.Channels[0].MaxMillivolts = 60000

	assert.True(t, IsOutOfRange(s.SetVoltage(1, 45000)))
	assert.Equal(t, 30000, s.Profile().Channels[0].MaxMillivolts)
	assert.Empty(t, dev.sent())
}
