package speech

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/pitchlab/podium/internal/align"
)

var wordRe = regexp.MustCompile(`[\w'-]+`)

// PauseStats is the pause inventory for a span of the recording.
type PauseStats struct {
	Count     int   `json:"count"`
	TotalMS   int64 `json:"total_ms"`
	AvgMS     int64 `json:"avg_ms"`
	P90MS     int64 `json:"p90_ms"`
	LongCount int   `json:"long_count"`
}

// PitchStats summarize the fundamental-frequency contour over voiced frames
// only. Voiced is false when no voiced frame was found (silence or a
// zero-duration span), in which case mean/variance are absent, not zero.
type PitchStats struct {
	Voiced     bool    `json:"voiced"`
	MeanHz     float64 `json:"mean_hz,omitempty"`
	VarianceHz float64 `json:"variance_hz,omitempty"`
}

// Metrics are the delivery metrics for one span: the whole session or one
// slide window.
type Metrics struct {
	SlideIndex     int        `json:"slide_index,omitempty"`
	DurationMS     int64      `json:"duration_ms"`
	SpeakingTimeMS int64      `json:"speaking_time_ms"`
	WordCount      int        `json:"word_count"`
	WPM            float64    `json:"wpm"`
	ZeroDuration   bool       `json:"zero_duration,omitempty"`
	Pauses         PauseStats `json:"pauses"`
	FillerCount    int        `json:"filler_count"`
	FillerRate     float64    `json:"filler_rate"`
	Pitch          PitchStats `json:"pitch"`
}

// Result carries session-level and per-slide metrics. Available is false
// when the recording could not be decoded to a waveform; text-derived
// metrics (WPM, fillers) are still present in that case.
type Result struct {
	Available bool      `json:"available"`
	Overall   Metrics   `json:"overall"`
	PerSlide  []Metrics `json:"per_slide"`
}

// Analyze computes delivery metrics per slide and for the whole session.
// Slices and windows must correspond one to one. Pauses are detected inside
// each slide window and summed for the session, so per-slide counts and
// totals add up exactly to the session figures.
func Analyze(track *Track, slices []align.Slice, windows []align.Window, cfg Config) (*Result, error) {
	if len(slices) != len(windows) {
		return nil, fmt.Errorf("slice/window count mismatch: %d vs %d", len(slices), len(windows))
	}

	fillers := make(map[string]bool, len(cfg.FillerWords))
	for _, w := range cfg.FillerWords {
		fillers[strings.ToLower(w)] = true
	}

	var threshold float64
	if track != nil {
		threshold = silenceThreshold(track, cfg)
	}

	res := &Result{Available: track != nil && len(track.Samples) > 0}
	perSlide := make([]Metrics, len(slices))

	var allPauses []int64
	var totalWords, totalFillers int
	var totalDuration, totalSpeaking int64

	for i, slice := range slices {
		w := windows[i]
		m := Metrics{SlideIndex: slice.SlideIndex, DurationMS: slice.DurationMS}

		words := wordRe.FindAllString(slice.Text, -1)
		m.WordCount = len(words)
		for _, word := range words {
			if fillers[strings.ToLower(word)] {
				m.FillerCount++
			}
		}
		if m.WordCount > 0 {
			m.FillerRate = float64(m.FillerCount) / float64(m.WordCount)
		}

		if slice.DurationMS <= 0 {
			m.ZeroDuration = true
		} else {
			m.WPM = float64(m.WordCount) / (float64(slice.DurationMS) / 60000.0)

			if res.Available {
				seg := track.slice(w.StartMS, w.EndMS)
				pauses, silentMS := detectPauses(seg, track.SampleRate, threshold, cfg)
				m.Pauses = pauseStats(pauses, cfg)
				m.SpeakingTimeMS = slice.DurationMS - silentMS
				if m.SpeakingTimeMS < 0 {
					m.SpeakingTimeMS = 0
				}
				m.Pitch = pitchStats(seg, track.SampleRate, threshold, cfg)
				allPauses = append(allPauses, pauses...)
			}
		}

		totalWords += m.WordCount
		totalFillers += m.FillerCount
		totalDuration += m.DurationMS
		totalSpeaking += m.SpeakingTimeMS
		perSlide[i] = m
	}

	overall := Metrics{
		DurationMS:     totalDuration,
		SpeakingTimeMS: totalSpeaking,
		WordCount:      totalWords,
		FillerCount:    totalFillers,
		Pauses:         pauseStats(allPauses, cfg),
	}
	if totalDuration > 0 {
		overall.WPM = float64(totalWords) / (float64(totalDuration) / 60000.0)
	} else {
		overall.ZeroDuration = true
	}
	if totalWords > 0 {
		overall.FillerRate = float64(totalFillers) / float64(totalWords)
	}
	if res.Available && len(windows) > 0 {
		overall.Pitch = pitchStats(
			track.slice(windows[0].StartMS, windows[len(windows)-1].EndMS),
			track.SampleRate, threshold, cfg)
	}

	res.Overall = overall
	res.PerSlide = perSlide
	return res, nil
}

// silenceThreshold derives the silent-frame RMS bound from the track's peak
// frame energy, cfg.SilenceFloorDB below it.
func silenceThreshold(track *Track, cfg Config) float64 {
	frame := int(cfg.EnergyFrameMS) * track.SampleRate / 1000
	if frame <= 0 {
		return 0
	}
	peak := 0.0
	for start := 0; start+frame <= len(track.Samples); start += frame {
		r := rms(track.Samples[start : start+frame])
		if r > peak {
			peak = r
		}
	}
	return peak * math.Pow(10, -cfg.SilenceFloorDB/20)
}

func rms(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// detectPauses scans a span for silent stretches. It returns the qualifying
// pause durations (after merging pauses separated by less than MergeGapMS
// and dropping stretches shorter than MinSilenceMS) plus the total silent
// time, which feeds speaking-time accounting.
func detectPauses(samples []float64, sampleRate int, threshold float64, cfg Config) ([]int64, int64) {
	frame := int(cfg.EnergyFrameMS) * sampleRate / 1000
	if frame <= 0 || len(samples) < frame {
		return nil, 0
	}

	type run struct{ startMS, endMS int64 }
	var runs []run
	var silentMS int64
	inRun := false

	for start := 0; start+frame <= len(samples); start += frame {
		silent := rms(samples[start:start+frame]) < threshold
		startMS := int64(start) * 1000 / int64(sampleRate)
		endMS := int64(start+frame) * 1000 / int64(sampleRate)
		if silent {
			silentMS += endMS - startMS
			if inRun {
				runs[len(runs)-1].endMS = endMS
			} else {
				runs = append(runs, run{startMS: startMS, endMS: endMS})
				inRun = true
			}
		} else {
			inRun = false
		}
	}

	// merge runs separated by a speech gap shorter than MergeGapMS
	var merged []run
	for _, r := range runs {
		if len(merged) > 0 && r.startMS-merged[len(merged)-1].endMS < cfg.MergeGapMS {
			merged[len(merged)-1].endMS = r.endMS
			continue
		}
		merged = append(merged, r)
	}

	var pauses []int64
	for _, r := range merged {
		if d := r.endMS - r.startMS; d >= cfg.MinSilenceMS {
			pauses = append(pauses, d)
		}
	}
	return pauses, silentMS
}

func pauseStats(pauses []int64, cfg Config) PauseStats {
	stats := PauseStats{Count: len(pauses)}
	if len(pauses) == 0 {
		return stats
	}
	sorted := make([]int64, len(pauses))
	copy(sorted, pauses)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	for _, p := range sorted {
		stats.TotalMS += p
		if p >= cfg.LongPauseMS {
			stats.LongCount++
		}
	}
	stats.AvgMS = stats.TotalMS / int64(len(sorted))

	// nearest-rank 90th percentile
	idx := (len(sorted)*9 + 9) / 10
	if idx > len(sorted) {
		idx = len(sorted)
	}
	stats.P90MS = sorted[idx-1]
	return stats
}
