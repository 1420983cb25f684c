package speech

// voicingThreshold is the minimum normalized autocorrelation peak for a
// frame to count as voiced. Below it the frame is noise or unvoiced
// consonant and contributes no pitch estimate.
const voicingThreshold = 0.5

// pitchStats runs an autocorrelation pitch tracker over the span and
// reports mean and variance of f0 across voiced frames. Silent and
// unvoiced frames are excluded entirely; treating them as zero pitch would
// corrupt the variance.
func pitchStats(samples []float64, sampleRate int, threshold float64, cfg Config) PitchStats {
	frame := int(cfg.PitchFrameMS) * sampleRate / 1000
	if frame <= 0 || len(samples) < frame {
		return PitchStats{}
	}

	minLag := int(float64(sampleRate) / cfg.PitchMaxHz)
	maxLag := int(float64(sampleRate) / cfg.PitchMinHz)
	if minLag < 2 {
		minLag = 2
	}
	if maxLag >= frame {
		maxLag = frame - 1
	}
	if minLag >= maxLag {
		return PitchStats{}
	}

	var f0s []float64
	for start := 0; start+frame <= len(samples); start += frame {
		window := samples[start : start+frame]
		if rms(window) < threshold {
			continue
		}
		if f0, ok := estimateF0(window, sampleRate, minLag, maxLag); ok {
			f0s = append(f0s, f0)
		}
	}

	if len(f0s) == 0 {
		return PitchStats{}
	}

	var sum float64
	for _, f := range f0s {
		sum += f
	}
	mean := sum / float64(len(f0s))

	var varSum float64
	for _, f := range f0s {
		d := f - mean
		varSum += d * d
	}

	return PitchStats{
		Voiced:     true,
		MeanHz:     mean,
		VarianceHz: varSum / float64(len(f0s)),
	}
}

// estimateF0 picks the lag with the strongest normalized autocorrelation in
// the search band. A frame without a clear periodic peak is unvoiced.
func estimateF0(window []float64, sampleRate, minLag, maxLag int) (float64, bool) {
	var energy float64
	for _, s := range window {
		energy += s * s
	}
	if energy == 0 {
		return 0, false
	}

	bestLag := 0
	bestCorr := 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		var corr float64
		for i := 0; i+lag < len(window); i++ {
			corr += window[i] * window[i+lag]
		}
		corr /= energy
		if corr > bestCorr {
			bestCorr = corr
			bestLag = lag
		}
	}

	if bestLag == 0 || bestCorr < voicingThreshold {
		return 0, false
	}
	return float64(sampleRate) / float64(bestLag), true
}
