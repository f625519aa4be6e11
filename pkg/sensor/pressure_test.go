package sensor

import (
	"testing"
	"time"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oculab/vacutherm/pkg/bus"
)

const (
	coefA float32 = 7.5
	coefB float32 = -3.75
)

func newTestPressure(b bus.RegisterBus) *Pressure {
	p := NewPressure(b, coefA, coefB, 8*time.Millisecond)
	p.sleep = func(time.Duration) {} // settle/pause windows collapsed in tests
	return p
}

func rawBytes(raw uint32) []byte {
	return []byte{byte(raw >> 16), byte(raw >> 8), byte(raw)}
}

func TestPressure_Convert(t *testing.T) {
	tests := []struct {
		name string
		raw  uint32
		want float32
	}{
		{name: "zero code", raw: 0x000000, want: coefB},
		{name: "most negative code", raw: 0x800000, want: coefA*(-1.0) + coefB}, // -11.25
		{name: "minus one lsb", raw: 0xFFFFFF, want: coefA*(-1.0/8388608.0) + coefB},
		{name: "half scale", raw: 0x400000, want: coefA*0.5 + coefB},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := &bus.FakeRegisterBus{Reads: []bus.FakeRead{{Data: rawBytes(tt.raw)}}}
			p := newTestPressure(fb)

			got, err := p.Read()
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-6)
		})
	}
}

func TestPressure_ConvertSubtractsZeroOffset(t *testing.T) {
	fb := &bus.FakeRegisterBus{Reads: []bus.FakeRead{{Data: rawBytes(0)}}}
	p := newTestPressure(fb)
	p.zeroOffset = -3.75 // a perfect offset measured at code zero

	got, err := p.Read()
	require.NoError(t, err)
	assert.InDelta(t, 0.0, got, 1e-6)
}

func TestPressure_ProtocolSequence(t *testing.T) {
	fb := &bus.FakeRegisterBus{Reads: []bus.FakeRead{{Data: rawBytes(0x400000)}}}
	p := newTestPressure(fb)

	_, err := p.Read()
	require.NoError(t, err)

	require.Len(t, fb.Writes, 1)
	assert.Equal(t, bus.RegWrite{Reg: 0x30, Value: 0x0A}, fb.Writes[0], "conversion must be triggered through the command register")
}

func TestPressure_ShortReadFailsSoft(t *testing.T) {
	fb := &bus.FakeRegisterBus{Reads: []bus.FakeRead{
		{Data: rawBytes(0x400000)},
		{Data: []byte{0x40}}, // incomplete transaction
	}}
	p := newTestPressure(fb)

	good, err := p.Read()
	require.NoError(t, err)

	v, err := p.Read()
	require.NoError(t, err)
	assert.InDelta(t, good, v, 1e-6)
}

func TestPressure_FailSoftSequence(t *testing.T) {
	fb := &bus.FakeRegisterBus{Reads: []bus.FakeRead{
		{Data: rawBytes(0x400000)},
		{Err: bus.ErrBus},
	}}
	p := newTestPressure(fb)

	good, err := p.Read()
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		v, err := p.Read()
		require.NoError(t, err)
		assert.InDelta(t, good, v, 1e-6)
		assert.True(t, p.IsValid())
	}

	v, err := p.Read()
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.True(t, math32.IsNaN(v))
	assert.False(t, p.IsValid())
}

func TestPressure_CalibrateZero(t *testing.T) {
	// All ten cycles read code 0x100000 -> 7.5*(1/8) - 3.75 = -2.8125 kPa.
	fb := &bus.FakeRegisterBus{Reads: []bus.FakeRead{{Data: rawBytes(0x100000)}}}
	p := newTestPressure(fb)

	offset, err := p.CalibrateZero()
	require.NoError(t, err)
	assert.InDelta(t, -2.8125, offset, 1e-5)

	// Post-calibration reads of the same code report zero.
	v, err := p.Read()
	require.NoError(t, err)
	assert.InDelta(t, 0.0, v, 1e-5)
}

func TestPressure_CalibrateZeroAddsBackPreviousOffset(t *testing.T) {
	fb := &bus.FakeRegisterBus{Reads: []bus.FakeRead{{Data: rawBytes(0x100000)}}}
	p := newTestPressure(fb)
	p.zeroOffset = 1.0

	offset, err := p.CalibrateZero()
	require.NoError(t, err)
	// Average must be of the uncorrected measurement, not offset-relative.
	assert.InDelta(t, -2.8125, offset, 1e-5)
}

func TestPressure_CalibrateZeroPartialSamples(t *testing.T) {
	// Trigger+read per cycle; cycles alternate between failing and code 0.
	reads := []bus.FakeRead{}
	for i := 0; i < 5; i++ {
		reads = append(reads, bus.FakeRead{Err: bus.ErrBus})
		reads = append(reads, bus.FakeRead{Data: rawBytes(0)})
	}
	fb := &bus.FakeRegisterBus{Reads: reads}
	p := newTestPressure(fb)

	offset, err := p.CalibrateZero()
	require.NoError(t, err)
	assert.InDelta(t, coefB, offset, 1e-5, "only decoded samples participate in the average")
}

func TestPressure_CalibrateZeroNoValidSamples(t *testing.T) {
	fb := &bus.FakeRegisterBus{Reads: []bus.FakeRead{{Err: bus.ErrBus}}}
	p := newTestPressure(fb)
	p.zeroOffset = 0.125

	offset, err := p.CalibrateZero()
	assert.ErrorIs(t, err, ErrCalibration)
	assert.Equal(t, float32(0.125), offset, "offset must be bit-for-bit unchanged")
	assert.Equal(t, float32(0.125), p.ZeroOffset())
}

func TestPressure_Probe(t *testing.T) {
	ok := newTestPressure(&bus.FakeRegisterBus{Reads: []bus.FakeRead{{Data: rawBytes(0)}}})
	assert.NoError(t, ok.Probe())

	bad := newTestPressure(&bus.FakeRegisterBus{WriteErr: bus.ErrBus})
	assert.Error(t, bad.Probe())
}
