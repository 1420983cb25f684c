package align

import (
	"reflect"
	"strings"
	"testing"
)

func ms(v int64) *int64 { return &v }

func threeWindows() []Window {
	return []Window{
		{Index: 1, StartMS: 0, EndMS: 10000},
		{Index: 2, StartMS: 10000, EndMS: 25000},
		{Index: 3, StartMS: 25000, EndMS: 30000},
	}
}

func TestAlign_ExactPartition(t *testing.T) {
	segments := []Segment{
		{Text: "opening words about the problem", StartMS: ms(0), EndMS: ms(9000)},
		{Text: "now the solution and the market and traction", StartMS: ms(9500), EndMS: ms(24000)},
		{Text: "finally the ask", StartMS: ms(25500), EndMS: ms(29500)},
	}

	res, err := Align(segments, threeWindows())
	if err != nil {
		t.Fatalf("Align failed: %v", err)
	}

	if res.Mode != ModeExact {
		t.Errorf("Expected exact mode, got %s", res.Mode)
	}
	if res.Degraded {
		t.Error("Exact alignment must not be flagged degraded")
	}
	if len(res.Slices) != 3 {
		t.Fatalf("Expected 3 slices, got %d", len(res.Slices))
	}

	wantDurations := []int64{10000, 15000, 5000}
	var total int64
	for i, s := range res.Slices {
		if s.DurationMS != wantDurations[i] {
			t.Errorf("Slice %d: expected duration %d, got %d", i, wantDurations[i], s.DurationMS)
		}
		total += s.DurationMS
	}
	if total != 30000 {
		t.Errorf("Slice durations must partition the recording: got %d", total)
	}

	// no word duplicated or dropped
	var gotWords int
	for _, s := range res.Slices {
		gotWords += len(strings.Fields(s.Text))
	}
	var wantWords int
	for _, seg := range segments {
		wantWords += len(strings.Fields(seg.Text))
	}
	if gotWords != wantWords {
		t.Errorf("Expected %d words across slices, got %d", wantWords, gotWords)
	}
}

func TestAlign_SegmentSpanningBoundary(t *testing.T) {
	// one segment covering both windows equally: words split by midpoint time
	segments := []Segment{
		{Text: "one two three four", StartMS: ms(0), EndMS: ms(20000)},
	}
	windows := []Window{
		{Index: 1, StartMS: 0, EndMS: 10000},
		{Index: 2, StartMS: 10000, EndMS: 20000},
	}

	res, err := Align(segments, windows)
	if err != nil {
		t.Fatalf("Align failed: %v", err)
	}
	if res.Slices[0].Text != "one two" {
		t.Errorf("Expected first half in window 1, got %q", res.Slices[0].Text)
	}
	if res.Slices[1].Text != "three four" {
		t.Errorf("Expected second half in window 2, got %q", res.Slices[1].Text)
	}
}

func TestAlign_ProportionalFallback(t *testing.T) {
	// no timestamps anywhere: proportional split by duration share
	segments := []Segment{{Text: "a b c d e f g h"}}
	windows := []Window{
		{Index: 1, StartMS: 0, EndMS: 5000},
		{Index: 2, StartMS: 5000, EndMS: 10000},
		{Index: 3, StartMS: 10000, EndMS: 15000},
		{Index: 4, StartMS: 15000, EndMS: 20000},
	}

	res, err := Align(segments, windows)
	if err != nil {
		t.Fatalf("Align failed: %v", err)
	}
	if res.Mode != ModeProportional {
		t.Errorf("Expected proportional mode, got %s", res.Mode)
	}
	if !res.Degraded {
		t.Error("Proportional alignment must be flagged degraded")
	}

	var total int64
	var words int
	for _, s := range res.Slices {
		if got := len(strings.Fields(s.Text)); got != 2 {
			t.Errorf("Slide %d: expected 2 words for equal windows, got %d (%q)", s.SlideIndex, got, s.Text)
		}
		total += s.DurationMS
		words += len(strings.Fields(s.Text))
	}
	if total != 20000 {
		t.Errorf("Durations must sum to recording duration, got %d", total)
	}
	if words != 8 {
		t.Errorf("Expected all 8 words allocated, got %d", words)
	}
}

func TestAlign_Idempotent(t *testing.T) {
	segments := []Segment{
		{Text: "alpha beta gamma delta", StartMS: ms(0), EndMS: ms(12000)},
		{Text: "epsilon zeta", StartMS: ms(12000), EndMS: ms(30000)},
	}
	windows := threeWindows()

	first, err := Align(segments, windows)
	if err != nil {
		t.Fatalf("Align failed: %v", err)
	}
	second, err := Align(segments, windows)
	if err != nil {
		t.Fatalf("Align failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("Align is not deterministic on identical inputs")
	}
}

func TestAlign_ZeroSlides(t *testing.T) {
	if _, err := Align([]Segment{{Text: "hello"}}, nil); err == nil {
		t.Error("Expected error for zero slide windows")
	}
}

func TestAlign_ZeroDurationRecording(t *testing.T) {
	windows := []Window{
		{Index: 1, StartMS: 0, EndMS: 0},
		{Index: 2, StartMS: 0, EndMS: 0},
	}
	res, err := Align([]Segment{{Text: "anything at all"}}, windows)
	if err != nil {
		t.Fatalf("Zero-duration recording must not fail: %v", err)
	}
	for _, s := range res.Slices {
		if s.Text != "" || s.DurationMS != 0 {
			t.Errorf("Expected empty zero-duration slice, got %+v", s)
		}
	}
}

func TestAlign_TranscriptLongerThanRecording(t *testing.T) {
	segments := []Segment{
		{Text: "inside the recording", StartMS: ms(0), EndMS: ms(9000)},
		{Text: "words after the end", StartMS: ms(31000), EndMS: ms(40000)},
	}

	res, err := Align(segments, threeWindows())
	if err != nil {
		t.Fatalf("Overlong transcript must not fail: %v", err)
	}
	if !res.Adjusted {
		t.Error("Expected boundary adjustment flag for clamped transcript")
	}

	last := res.Slices[2].Text
	for _, w := range []string{"words", "after", "the", "end"} {
		if !strings.Contains(last, w) {
			t.Errorf("Trailing word %q should be clamped into the final slice, got %q", w, last)
		}
	}
}

func TestAlign_OverlappingWindowsRejected(t *testing.T) {
	windows := []Window{
		{Index: 1, StartMS: 0, EndMS: 12000},
		{Index: 2, StartMS: 10000, EndMS: 20000},
	}
	if _, err := Align([]Segment{{Text: "x", StartMS: ms(0), EndMS: ms(1)}}, windows); err == nil {
		t.Error("Expected error for overlapping windows")
	}
}

func TestSynthesizeWindows(t *testing.T) {
	windows, err := SynthesizeWindows(3, 30000)
	if err != nil {
		t.Fatalf("SynthesizeWindows failed: %v", err)
	}
	if len(windows) != 3 {
		t.Fatalf("Expected 3 windows, got %d", len(windows))
	}
	if windows[0].StartMS != 0 || windows[2].EndMS != 30000 {
		t.Error("Windows must cover the full recording")
	}
	for i := 1; i < len(windows); i++ {
		if windows[i].StartMS != windows[i-1].EndMS {
			t.Error("Windows must be contiguous")
		}
	}

	if _, err := SynthesizeWindows(0, 30000); err == nil {
		t.Error("Expected error for zero slides")
	}
}

func TestParseTiming(t *testing.T) {
	data := []byte(`{"slides":[{"index":2,"start_ms":10000,"end_ms":25000},{"index":1,"start_ms":0,"end_ms":10000}]}`)
	windows, err := ParseTiming(data)
	if err != nil {
		t.Fatalf("ParseTiming failed: %v", err)
	}
	if windows[0].Index != 1 || windows[1].Index != 2 {
		t.Error("Windows must be sorted by slide index")
	}

	if _, err := ParseTiming([]byte(`{"slides":[]}`)); err == nil {
		t.Error("Expected error for empty timing file")
	}
	if _, err := ParseTiming([]byte(`not json`)); err == nil {
		t.Error("Expected error for malformed timing file")
	}
}
