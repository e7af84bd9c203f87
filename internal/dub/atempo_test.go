package dub

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAtempoChain_WithinRangeSingleFactor(t *testing.T) {
	assert.Equal(t, "atempo=1.000000", atempoChain(1.0))
}

func TestAtempoChain_AboveRangeDecomposesIntoTwoFactors(t *testing.T) {
	assert.Equal(t, "atempo=2.000000,atempo=1.500000", atempoChain(3.0))
}

func TestAtempoChain_BelowRangeDecomposesIntoTwoFactors(t *testing.T) {
	assert.Equal(t, "atempo=0.500000,atempo=0.500000", atempoChain(0.25))
}

func TestAtempoChain_ExtremeRatioChainsThreeFactors(t *testing.T) {
	assert.Equal(t, "atempo=2.000000,atempo=2.000000,atempo=1.250000", atempoChain(5.0))
}

func TestAtempoChain_NonPositiveRatioTreatedAsUnity(t *testing.T) {
	assert.Equal(t, "atempo=1.000000", atempoChain(0))
	assert.Equal(t, "atempo=1.000000", atempoChain(-5))
}

func TestRoundRatio_RoundsToSixDecimals(t *testing.T) {
	assert.InDelta(t, 1.234568, roundRatio(1.23456789), 1e-9)
	assert.InDelta(t, 1.0, roundRatio(1.0000001), 1e-9)
}
