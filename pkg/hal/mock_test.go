package hal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMock_Defaults(t *testing.T) {
	m := NewMock(nil)

	v, err := m.ReadAnalog(0)
	require.NoError(t, err)
	assert.Equal(t, 512.0, v)

	level, err := m.ReadDigital(0)
	require.NoError(t, err)
	assert.False(t, level, "base level equals threshold")

	hum, temp, err := m.ReadClimate(0)
	require.NoError(t, err)
	assert.Equal(t, 45.0, hum)
	assert.Equal(t, 21.5, temp)
}

func TestMock_SetLevel(t *testing.T) {
	m := NewMock(nil)
	m.SetLevel(3, 900)

	v, err := m.ReadAnalog(3)
	require.NoError(t, err)
	assert.Equal(t, 900.0, v)

	level, err := m.ReadDigital(3)
	require.NoError(t, err)
	assert.True(t, level)

	v, err = m.ReadAnalog(4)
	require.NoError(t, err)
	assert.Equal(t, 512.0, v, "other pins keep the base level")
}

func TestMock_SetClimate(t *testing.T) {
	m := NewMock(nil)
	m.SetClimate(80, -3)

	hum, temp, err := m.ReadClimate(1)
	require.NoError(t, err)
	assert.Equal(t, 80.0, hum)
	assert.Equal(t, -3.0, temp)
}

func TestMock_NoiseIsBounded(t *testing.T) {
	m := NewMock(&MockConfig{Base: 1000, Noise: 10, Threshold: 500})
	start := time.Unix(0, 0)
	m.startTime = start

	for i := 0; i < 50; i++ {
		step := start.Add(time.Duration(i) * time.Millisecond)
		m.now = func() time.Time { return step }

		v, err := m.ReadAnalog(1)
		require.NoError(t, err)
		assert.InDelta(t, 1000.0, v, 10.0)
	}
}
