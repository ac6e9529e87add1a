package capture

import "math"

// ComputeBands partitions a sample buffer into bandCount contiguous ranges
// and returns the root-mean-square of each, clamped to [0, 1] so the values
// are directly usable as visualization heights.
func ComputeBands(samples []int16, bandCount int) []float32 {
	bands := make([]float32, bandCount)
	if bandCount == 0 || len(samples) == 0 {
		return bands
	}

	samplesPerBand := len(samples) / bandCount
	if samplesPerBand < 1 {
		samplesPerBand = 1
	}

	for band := 0; band < bandCount; band++ {
		start := band * samplesPerBand
		if start >= len(samples) {
			break
		}
		end := start + samplesPerBand
		if end > len(samples) {
			end = len(samples)
		}

		var sum float64
		for _, s := range samples[start:end] {
			v := float64(s) / 32768.0
			sum += v * v
		}
		rms := math.Sqrt(sum / float64(end-start))
		bands[band] = clamp01(float32(rms))
	}
	return bands
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
