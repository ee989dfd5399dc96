package fetch

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAprToApy(t *testing.T) {
	tests := []struct {
		name string
		apr  float64
		want float64
	}{
		{"zero stays zero", 0, 0},
		{"ten percent compounds daily", 10, 10.515578},
		{"one percent", 1, 1.005003},
		{"high rate", 100, 171.4567},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, AprToApy(tt.apr), 0.001)
		})
	}
}

func TestDecodeRate(t *testing.T) {
	value, ok := new(big.Int).SetString("8100000000000000000000000", 10)
	require.True(t, ok)

	assert.InDelta(t, 8.1, DecodeRate(value, 24), 1e-9)
	assert.InDelta(t, 0.81, DecodeRate(value, 25), 1e-9)
	assert.InDelta(t, 0, DecodeRate(big.NewInt(0), 24), 1e-12)
	assert.InDelta(t, 0, DecodeRate(nil, 24), 1e-12)
}
