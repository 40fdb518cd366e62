package floats

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBitsRoundTrip64(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	specials := []uint64{
		0,
		1 << 63,            // -0
		0x7ff0000000000000, // +Inf
		0x7ff8000000000001, // quiet NaN with payload
		0x7ff0000000000001, // signalling NaN
		math.Float64bits(1.5),
	}
	for i := 0; i < 1000; i++ {
		specials = append(specials, rng.Uint64())
	}

	for _, b := range specials {
		assert.Equal(t, b, ToBits64(OfBits64(b)))
		f := OfBits64(b)
		assert.True(t, Eq64(f, OfBits64(ToBits64(f))))
	}
}

func TestBitsRoundTrip32(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	for i := 0; i < 1000; i++ {
		b := rng.Uint32()
		assert.Equal(t, b, ToBits32(OfBits32(b)))
	}
	assert.Equal(t, uint32(0x7fc00001), ToBits32(OfBits32(0x7fc00001)))
}

func TestEqDistinguishesSignedZero(t *testing.T) {
	assert.False(t, Eq64(0, Neg(0)))
	assert.True(t, Eq64(math.NaN(), math.NaN()))
}

func TestAbsKeepsPayload(t *testing.T) {
	nan := OfBits64(0xfff8000000000123)
	assert.Equal(t, uint64(0x7ff8000000000123), ToBits64(Abs(nan)))
	assert.Equal(t, 2.5, Abs(-2.5))
	assert.Equal(t, float32(1.25), Abs32(-1.25))
}
