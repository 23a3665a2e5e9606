package modern

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serialpkg "github.com/CK6170/tenmadc-go/serial"
)

// TestHardware runs against a real supply when TENMA_PORT is set.
// TENMA_MODEL names the expected profile (default 72-2540).
func TestHardware(t *testing.T) {
	port := os.Getenv("TENMA_PORT")
	if port == "" {
		t.Skip("TENMA_PORT not set")
	}
	model := os.Getenv("TENMA_MODEL")
	if model == "" {
		model = "72-2540"
	}

	s, err := Detect(SerialFactory(serialpkg.DefaultBaud, time.Second), port)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, model, s.Profile().Name)

	id, err := s.Identification()
	require.NoError(t, err)
	t.Logf("identification: %s", id)

	require.NoError(t, s.SetOutput(false))
	require.NoError(t, SetVoltageVerified(s, 1, 5000))
	require.NoError(t, SetCurrentVerified(s, 1, 100))

	st, err := s.ReadStatus()
	require.NoError(t, err)
	assert.False(t, st.Output)
}
