package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProRataPayout(t *testing.T) {
	// Winner takes the whole pool when alone on the winning side.
	assert.Equal(t, int64(300), proRataPayout(100, 300, 100))

	// Half the winning side gets half the pool.
	assert.Equal(t, int64(150), proRataPayout(50, 300, 100))

	// Floors; the rounding remainder stays in the pool.
	assert.Equal(t, int64(33), proRataPayout(1, 100, 3))

	// Stake equal to the winning pool returns the total pool exactly.
	assert.Equal(t, int64(7_000_000), proRataPayout(3_000_000, 7_000_000, 3_000_000))
}

func TestProRataPayout_LargePools(t *testing.T) {
	// 30 million HNLD staked against a 60 million HNLD pool, in centavos.
	// The naive stake*total product exceeds int64 here.
	stake := int64(3_000_000_000)
	total := int64(6_000_000_000)
	winning := int64(3_000_000_000)

	assert.Equal(t, total, proRataPayout(stake, total, winning))

	// A half share of the same pool.
	assert.Equal(t, int64(3_000_000_000), proRataPayout(1_500_000_000, total, winning))
}
