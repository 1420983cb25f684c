package align

import (
	"encoding/json"
	"fmt"
	"sort"
)

// timingFile mirrors the uploaded timing.json: authoritative slide windows
// recorded by the capture client.
type timingFile struct {
	Slides []Window `json:"slides"`
}

// ParseTiming decodes timing.json into ordered slide windows.
func ParseTiming(data []byte) ([]Window, error) {
	var tf timingFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("failed to parse timing file: %w", err)
	}
	if len(tf.Slides) == 0 {
		return nil, fmt.Errorf("timing file has no slides")
	}
	windows := make([]Window, len(tf.Slides))
	copy(windows, tf.Slides)
	sort.Slice(windows, func(i, j int) bool { return windows[i].Index < windows[j].Index })
	return windows, nil
}

// SynthesizeWindows divides the recording evenly across slideCount slides.
// This is the documented degraded mode used when no timing file exists:
// boundaries are exact integer divisions so the windows partition
// [0, totalDurationMS) with no gaps or overlaps.
func SynthesizeWindows(slideCount int, totalDurationMS int64) ([]Window, error) {
	if slideCount <= 0 {
		return nil, ErrNoSlides
	}
	if totalDurationMS < 0 {
		totalDurationMS = 0
	}

	windows := make([]Window, slideCount)
	for i := 0; i < slideCount; i++ {
		start := totalDurationMS * int64(i) / int64(slideCount)
		end := totalDurationMS * int64(i+1) / int64(slideCount)
		windows[i] = Window{Index: i + 1, StartMS: start, EndMS: end}
	}
	return windows, nil
}
