package dub

import (
	"fmt"
	"math"

	"dubcore/internal/config"
)

// atempoChain decomposes a tempo ratio outside ffmpeg's native atempo range
// ([0.5, 2.0]) into a chain of in-range factors whose product approximates
// it (spec §4.8 step 3c). Grounded on anilpdv-video-dubber's
// services/ffmpeg.go AdjustAudioDuration, generalized from its two
// hardcoded one-or-two-filter cases into an arbitrary-depth chain so very
// extreme ratios (beyond 4x) still compose correctly.
func atempoChain(ratio float64) string {
	if ratio <= 0 {
		ratio = 1
	}

	var factors []float64
	remaining := roundRatio(ratio)
	for remaining > config.AtempoMax {
		factors = append(factors, config.AtempoMax)
		remaining /= config.AtempoMax
	}
	for remaining < config.AtempoMin {
		factors = append(factors, config.AtempoMin)
		remaining /= config.AtempoMin
	}
	factors = append(factors, remaining)

	expr := ""
	for i, f := range factors {
		if i > 0 {
			expr += ","
		}
		expr += fmt.Sprintf("atempo=%.6f", f)
	}
	return expr
}

// roundRatio avoids chaining a near-1.0 final factor from floating-point
// drift, which would add an inaudible-but-wasteful extra atempo stage.
func roundRatio(r float64) float64 {
	return math.Round(r*1e6) / 1e6
}
