package sensor

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oculab/vacutherm/pkg/bus"
)

// frame builds a MAX31855 frame from quarter-degree thermocouple counts and
// sixteenth-degree internal counts.
func frame(tc int32, internal int32) uint32 {
	return (uint32(tc)&0x3FFF)<<18 | (uint32(internal)&0xFFF)<<4
}

func TestTemperature_Decode(t *testing.T) {
	tests := []struct {
		name  string
		frame uint32
		want  float32
	}{
		{name: "zero", frame: frame(0, 0), want: 0},
		{name: "body temperature", frame: frame(148, 0), want: 37.0},
		{name: "quarter degree resolution", frame: frame(1, 0), want: 0.25},
		{name: "negative", frame: frame(-4, 0), want: -1.0},
		{name: "most negative quarter", frame: frame(-1, 0), want: -0.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewTemperature(&bus.FakeFrameBus{Frames: []bus.FakeFrame{{Value: tt.frame}}})

			got, err := d.Read()
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-4)
			assert.True(t, d.IsValid())
		})
	}
}

func TestTemperature_FaultFrames(t *testing.T) {
	tests := []struct {
		name  string
		frame uint32
		want  error
	}{
		{name: "open circuit", frame: frame(100, 0) | frameFault | faultOpen, want: ErrOpenCircuit},
		{name: "short to ground", frame: frame(100, 0) | frameFault | faultShortGND, want: ErrShortGND},
		{name: "short to vcc", frame: frame(100, 0) | frameFault | faultShortVCC, want: ErrShortVCC},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeThermocouple(tt.frame)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestTemperature_FailSoftSequence(t *testing.T) {
	fb := &bus.FakeFrameBus{Frames: []bus.FakeFrame{
		{Value: frame(160, 0)}, // 40.0°C good
		{Value: frame(0, 0) | frameFault | faultOpen},
	}}
	d := NewTemperature(fb)

	good, err := d.Read()
	require.NoError(t, err)
	require.InDelta(t, 40.0, good, 1e-4)

	// Failures 1 and 2 fail soft with the last good value.
	for i := 0; i < 2; i++ {
		v, err := d.Read()
		require.NoError(t, err)
		assert.InDelta(t, 40.0, v, 1e-4)
		assert.True(t, d.IsValid())
	}

	// Failure 3 reports unavailable; stays unavailable while failures last.
	for i := 0; i < 2; i++ {
		v, err := d.Read()
		assert.ErrorIs(t, err, ErrUnavailable)
		assert.True(t, math32.IsNaN(v))
		assert.False(t, d.IsValid())
	}
}

func TestTemperature_RecoveryResetsErrorCount(t *testing.T) {
	fb := &bus.FakeFrameBus{Frames: []bus.FakeFrame{
		{Value: frame(0, 0) | frameFault | faultOpen},
		{Value: frame(0, 0) | frameFault | faultOpen},
		{Value: frame(148, 0)},
		{Value: frame(0, 0) | frameFault | faultOpen},
	}}
	d := NewTemperature(fb)

	d.Read()
	d.Read()

	v, err := d.Read()
	require.NoError(t, err)
	assert.InDelta(t, 37.0, v, 1e-4)
	assert.True(t, d.IsValid())

	// A single failure after recovery fails soft again.
	v, err = d.Read()
	require.NoError(t, err)
	assert.InDelta(t, 37.0, v, 1e-4)
}

func TestTemperature_ReadInternal(t *testing.T) {
	// Reference junction at 24.0625°C = 385 sixteenths.
	fb := &bus.FakeFrameBus{Frames: []bus.FakeFrame{{Value: frame(148, 385)}}}
	d := NewTemperature(fb)

	got, err := d.ReadInternal()
	require.NoError(t, err)
	assert.InDelta(t, 24.0625, got, 1e-4)
}

func TestTemperature_InternalNegative(t *testing.T) {
	assert.InDelta(t, -1.0, decodeInternal(frame(0, -16)), 1e-4)
}

func TestTemperature_Probe(t *testing.T) {
	ok := NewTemperature(&bus.FakeFrameBus{Frames: []bus.FakeFrame{{Value: frame(100, 0)}}})
	assert.NoError(t, ok.Probe())

	bad := NewTemperature(&bus.FakeFrameBus{Frames: []bus.FakeFrame{{Value: frameFault | faultOpen}}})
	assert.Error(t, bad.Probe())
}
