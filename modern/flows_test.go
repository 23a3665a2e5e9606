package modern

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serialpkg "github.com/CK6170/tenmadc-go/serial"
)

func TestReset(t *testing.T) {
	dev := newSim("\n", nil)
	require.NoError(t, Reset(openSim(dev, "72-13320")))
	assert.Equal(t, []string{"OUT12:0\n", "OUT12:1\n"}, dev.sent())
}

func TestSetVerified(t *testing.T) {
	dev := newSim("", map[string]string{"VSET1?": "05.00", "ISET1?": "1.000"})
	s := openSim(dev, "72-2540")

	require.NoError(t, SetVoltageVerified(s, 1, 5000))

	err := SetCurrentVerified(s, 1, 1500)
	var ve *VerifyError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, 1500, ve.Want)
	assert.Equal(t, 1000, ve.Got)
}

func TestSaveFlow(t *testing.T) {
	dev := newSim("", map[string]string{"VSET1?": "12.00", "ISET1?": "0.500"})
	s := openSim(dev, "72-2540")

	require.NoError(t, SaveFlow(s, 3, 1))
	assert.Equal(t, []string{
		"OUT0",
		"VSET1?",
		"ISET1?",
		"RCL3",
		"VSET1:12.00",
		"ISET1:0.500",
		"SAV3",
	}, dev.sent())
}

func TestRetry(t *testing.T) {
	old := RetryDelay
	RetryDelay = time.Millisecond
	defer func() { RetryDelay = old }()

	calls := 0
	err := Retry(context.Background(), 3, func() error {
		calls++
		if calls < 3 {
			return &OpError{Op: "read-voltage", Err: &serialpkg.TimeoutError{Op: "read", Window: time.Second}}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	boom := errors.New("boom")
	err = Retry(context.Background(), 5, func() error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)

	calls = 0
	err = Retry(context.Background(), 2, func() error {
		calls++
		return &serialpkg.TimeoutError{Op: "read", Window: time.Second}
	})
	assert.True(t, IsTimeout(err))
	assert.Equal(t, 2, calls)
}

func TestRetryCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, 3, func() error {
		return &serialpkg.TimeoutError{Op: "read", Window: time.Second}
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSampleOutput(t *testing.T) {
	old := SampleInterval
	SampleInterval = time.Millisecond
	defer func() { SampleInterval = old }()

	dev := newSim("", map[string]string{"VOUT1?": "12.00", "IOUT1?": "0.500"})
	s := openSim(dev, "72-2540")

	var phases []SamplePhase
	res, err := SampleOutput(context.Background(), s, 1, 2, 3, func(u SampleUpdate) {
		phases = append(phases, u.Phase)
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Count)
	assert.InDelta(t, 12000, res.MeanMillivolts, 1e-9)
	assert.InDelta(t, 500, res.MeanMilliamps, 1e-9)
	assert.Zero(t, res.StdMillivolts)
	assert.Equal(t, []SamplePhase{
		SamplePhaseIgnoring, SamplePhaseIgnoring,
		SamplePhaseAveraging, SamplePhaseAveraging, SamplePhaseAveraging,
		SamplePhaseFinished,
	}, phases)
	assert.Len(t, dev.sent(), 10)
}

func TestSampleOutputFixedChannel(t *testing.T) {
	dev := newSim("\n", map[string]string{"VOUT3?": "03.30\n"})
	s := openSim(dev, "72-13320")

	res, err := SampleOutput(context.Background(), s, 3, 0, 1, nil)
	require.NoError(t, err)
	assert.InDelta(t, 3300, res.MeanMillivolts, 1e-9)
	assert.Zero(t, res.MeanMilliamps)
	assert.Equal(t, []string{"VOUT3?\n"}, dev.sent())
}

func TestSampleOutputErrors(t *testing.T) {
	s := openSim(newSim("", nil), "72-2540", WithTimeout(50*time.Millisecond))

	_, err := SampleOutput(context.Background(), s, 1, 0, 0, nil)
	assert.Error(t, err)

	_, err = SampleOutput(context.Background(), s, 2, 0, 1, nil)
	assert.True(t, IsOutOfRange(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = SampleOutput(ctx, s, 1, 1, 1, nil)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = SampleOutput(context.Background(), s, 1, 0, 1, nil)
	assert.True(t, IsTimeout(err))
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9600, cfg.Serial.Baudrate)
	assert.Equal(t, time.Second, cfg.Serial.Timeout)
	assert.Equal(t, 1, cfg.Retries)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
	assert.Empty(t, cfg.Path())
	assert.Error(t, cfg.PersistSerialPort())
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tenma.yaml")
	require.NoError(t, os.WriteFile(path, []byte("serial:\n  port: /dev/ttyUSB3\n  timeout: 250ms\nmodel: 72-2545\nretries: 3\n"), 0o644))
	t.Setenv("TENMA_MODEL", "72-2940")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB3", cfg.Serial.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.Serial.Timeout)
	assert.Equal(t, "72-2940", cfg.Model)
	assert.Equal(t, 3, cfg.Retries)

	changed, err := EnsureSerialPort(cfg, true)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestPersistSerialPort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tenma.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retries: 2\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	cfg.Serial.Port = "/dev/ttyACM0"
	require.NoError(t, cfg.PersistSerialPort())

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM0", again.Serial.Port)
	assert.Equal(t, 2, again.Retries)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
