// Package align maps a transcript onto slide time windows, producing one
// transcript slice per slide. Alignment is exact when every segment carries
// timestamps; otherwise it degrades to proportional-by-duration splitting
// and says so, so consumers can tell precise slices from heuristic ones.
package align

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
)

type Mode string

const (
	// ModeExact means every transcript segment carried timestamps and words
	// were attributed to windows by their interpolated time.
	ModeExact Mode = "exact"
	// ModeProportional means timestamps were missing and the transcript was
	// split by each window's share of the total recording duration.
	ModeProportional Mode = "proportional"
)

var (
	ErrNoSlides      = errors.New("no slide windows")
	ErrWindowInvalid = errors.New("invalid slide window")
)

// Segment is one transcript unit. Timestamps are optional; a transcript with
// no timing at all is a single Segment with nil bounds.
type Segment struct {
	Text    string `json:"text"`
	StartMS *int64 `json:"start_ms,omitempty"`
	EndMS   *int64 `json:"end_ms,omitempty"`
}

// Window is a slide's claimed time interval within the recording.
type Window struct {
	Index   int   `json:"index"`
	StartMS int64 `json:"start_ms"`
	EndMS   int64 `json:"end_ms"`
}

// Slice is the portion of transcript text attributed to one window.
type Slice struct {
	SlideIndex int    `json:"slide_index"`
	Text       string `json:"text"`
	DurationMS int64  `json:"duration_ms"`
}

// Result carries the slices plus how they were obtained. Degraded is true
// whenever Mode != ModeExact; Adjusted is true when transcript content ran
// past the final window and was clamped into it.
type Result struct {
	Mode     Mode    `json:"mode"`
	Degraded bool    `json:"degraded"`
	Adjusted bool    `json:"adjusted"`
	Slices   []Slice `json:"slices"`
}

// Align partitions the transcript across the given windows. Windows must be
// ordered, non-overlapping and non-empty in time (start < end), except that
// a fully zero-duration recording yields empty slices rather than an error.
func Align(segments []Segment, windows []Window) (*Result, error) {
	if len(windows) == 0 {
		return nil, ErrNoSlides
	}

	sorted := make([]Window, len(windows))
	copy(sorted, windows)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	totalMS := sorted[len(sorted)-1].EndMS - sorted[0].StartMS
	if totalMS == 0 {
		slices := make([]Slice, len(sorted))
		for i, w := range sorted {
			slices[i] = Slice{SlideIndex: w.Index, Text: "", DurationMS: 0}
		}
		return &Result{Mode: ModeExact, Slices: slices}, nil
	}

	for i, w := range sorted {
		if w.StartMS >= w.EndMS {
			return nil, fmt.Errorf("%w: slide %d has start_ms >= end_ms", ErrWindowInvalid, w.Index)
		}
		if i > 0 && w.StartMS < sorted[i-1].EndMS {
			return nil, fmt.Errorf("%w: slide %d overlaps slide %d", ErrWindowInvalid, w.Index, sorted[i-1].Index)
		}
	}

	if timestamped(segments) {
		return alignExact(segments, sorted)
	}
	return alignProportional(segments, sorted, totalMS)
}

func timestamped(segments []Segment) bool {
	if len(segments) == 0 {
		return false
	}
	for _, s := range segments {
		if s.StartMS == nil || s.EndMS == nil {
			return false
		}
	}
	return true
}

// alignExact assigns each word to the window containing its interpolated
// midpoint time within its segment. Splitting by word midpoints allocates a
// boundary-spanning segment's text proportionally to time overlap without
// duplicating or dropping any word.
func alignExact(segments []Segment, windows []Window) (*Result, error) {
	words := make([][]string, len(windows))
	adjusted := false

	first := windows[0].StartMS
	last := windows[len(windows)-1].EndMS

	for _, seg := range segments {
		segWords := strings.Fields(seg.Text)
		if len(segWords) == 0 {
			continue
		}
		start, end := *seg.StartMS, *seg.EndMS
		dur := end - start

		for i, word := range segWords {
			// midpoint of the word's share of the segment interval
			mid := start
			if dur > 0 {
				mid = start + (int64(2*i+1)*dur)/int64(2*len(segWords))
			}
			if mid >= last {
				mid = last - 1
				adjusted = true
			}
			if mid < first {
				mid = first
				adjusted = true
			}
			wi := windowAt(windows, mid)
			words[wi] = append(words[wi], word)
		}
	}

	if adjusted {
		log.Printf("[ALIGN] transcript ran past recording bounds, trailing words clamped into final window")
	}

	slices := make([]Slice, len(windows))
	for i, w := range windows {
		slices[i] = Slice{
			SlideIndex: w.Index,
			Text:       strings.Join(words[i], " "),
			DurationMS: w.EndMS - w.StartMS,
		}
	}
	return &Result{Mode: ModeExact, Adjusted: adjusted, Slices: slices}, nil
}

// windowAt locates the window containing the instant t. Windows are a
// contiguous partition; gaps resolve to the nearest following window.
func windowAt(windows []Window, t int64) int {
	for i, w := range windows {
		if t < w.EndMS {
			return i
		}
	}
	return len(windows) - 1
}

// alignProportional splits the whole transcript's words by each window's
// share of the total duration. Word boundaries are cumulative so the split
// is a partition: no word appears in two slices.
func alignProportional(segments []Segment, windows []Window, totalMS int64) (*Result, error) {
	var all []string
	for _, seg := range segments {
		all = append(all, strings.Fields(seg.Text)...)
	}
	n := int64(len(all))

	slices := make([]Slice, len(windows))
	var elapsed int64
	prev := int64(0)
	for i, w := range windows {
		elapsed += w.EndMS - w.StartMS
		// cumulative word boundary, rounded
		bound := (n*elapsed + totalMS/2) / totalMS
		if bound > n {
			bound = n
		}
		if i == len(windows)-1 {
			bound = n
		}
		slices[i] = Slice{
			SlideIndex: w.Index,
			Text:       strings.Join(all[prev:bound], " "),
			DurationMS: w.EndMS - w.StartMS,
		}
		prev = bound
	}

	return &Result{Mode: ModeProportional, Degraded: true, Slices: slices}, nil
}
