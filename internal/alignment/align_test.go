package alignment_test

import (
	"testing"

	"reelforge/internal/alignment"
	"reelforge/internal/media"
	"reelforge/internal/testsupport"
)

func newEngine(t *testing.T) *alignment.Engine {
	t.Helper()
	return alignment.New(testsupport.NewConfig(t), nil)
}

func wordTrack(words []string, stepMS int64) []media.WordTimestamp {
	track := make([]media.WordTimestamp, len(words))
	for i, word := range words {
		track[i] = media.WordTimestamp{
			Word:    word,
			StartMS: int64(i) * stepMS,
			EndMS:   int64(i+1) * stepMS,
		}
	}
	return track
}

func segments(texts ...string) []media.TextSegment {
	segs := make([]media.TextSegment, len(texts))
	for i, text := range texts {
		segs[i] = media.TextSegment{Index: i, Raw: text}
	}
	return segs
}

func TestAlignExactMatch(t *testing.T) {
	engine := newEngine(t)
	words := wordTrack([]string{"the", "quick", "brown", "fox"}, 400)
	timings, err := engine.Align(segments("the quick", "brown fox"), words, 1600)
	if err != nil {
		t.Fatalf("Align failed: %v", err)
	}
	want := []media.SegmentTiming{
		{Index: 0, StartMS: 0, EndMS: 800},
		{Index: 1, StartMS: 800, EndMS: 1600},
	}
	if len(timings) != len(want) {
		t.Fatalf("expected %d timings, got %d", len(want), len(timings))
	}
	for i := range want {
		if timings[i] != want[i] {
			t.Fatalf("timing %d = %+v, want %+v", i, timings[i], want[i])
		}
	}
}

func TestAlignIgnoresPunctuationAndAnnotations(t *testing.T) {
	engine := newEngine(t)
	words := wordTrack([]string{"Hello,", "world.", "It's", "here"}, 250)
	segs := []media.TextSegment{
		{Index: 0, Raw: "Hello world!", Enhanced: "[warmly] Hello world!"},
		{Index: 1, Raw: "It's here.", Enhanced: "It's here. <break time=\"1s\"/>"},
	}
	timings, err := engine.Align(segs, words, 1000)
	if err != nil {
		t.Fatalf("Align failed: %v", err)
	}
	if timings[0].EndMS != 500 || timings[1].StartMS != 500 {
		t.Fatalf("unexpected boundary: %+v", timings)
	}
}

func TestAlignFuzzyMatchSurvivesAlteredWording(t *testing.T) {
	engine := newEngine(t)
	// The speech engine dropped "very" and the transcript reflects that.
	words := wordTrack([]string{"it", "was", "a", "cold", "night", "nobody", "dared", "to", "move"}, 200)
	timings, err := engine.Align(segments("it was a very cold night", "nobody dared to move"), words, 1800)
	if err != nil {
		t.Fatalf("Align failed: %v", err)
	}
	if timings[0].StartMS != 0 {
		t.Fatalf("first segment should start at 0, got %d", timings[0].StartMS)
	}
	if timings[0].EndMS != 1000 {
		t.Fatalf("first segment should end at the fuzzy window, got %d", timings[0].EndMS)
	}
	if timings[1].StartMS != 1000 || timings[1].EndMS != 1800 {
		t.Fatalf("second segment misplaced: %+v", timings[1])
	}
}

func TestAlignProportionalFallback(t *testing.T) {
	engine := newEngine(t)
	// Transcript bears no resemblance to the script; every segment
	// falls through to the proportional split.
	words := wordTrack([]string{"completely", "different", "words", "entirely"}, 500)
	timings, err := engine.Align(segments("one two", "three four five six"), words, 2000)
	if err != nil {
		t.Fatalf("Align failed: %v", err)
	}
	if timings[0].DurationMS() >= timings[1].DurationMS() {
		t.Fatalf("proportional split should favour the longer segment: %+v", timings)
	}
	if timings[0].StartMS != 0 || timings[1].EndMS != 2000 {
		t.Fatalf("fallback timings must cover the track: %+v", timings)
	}
}

func TestAlignPinchedSegmentBorrowsFromNeighbours(t *testing.T) {
	engine := newEngine(t)
	// The middle segment never made it into the transcript and its
	// neighbours' words are back to back, so there is no silence for
	// the proportional split to hand out.
	words := wordTrack([]string{"the", "quick", "brown", "fox"}, 400)
	timings, err := engine.Align(segments("the quick", "xyzzy glorp", "brown fox"), words, 1600)
	if err != nil {
		t.Fatalf("Align failed: %v", err)
	}
	if err := media.ValidateTimings(timings, 1600); err != nil {
		t.Fatalf("invariant violated: %v", err)
	}
	for i, timing := range timings {
		if timing.DurationMS() <= 0 {
			t.Fatalf("timing %d has no duration: %+v", i, timing)
		}
	}
	if timings[1].DurationMS() >= timings[0].DurationMS()+timings[2].DurationMS() {
		t.Fatalf("borrowed segment should not dominate its neighbours: %+v", timings)
	}
}

func TestAlignAbsorbsShortGaps(t *testing.T) {
	engine := newEngine(t)
	words := []media.WordTimestamp{
		{Word: "first", StartMS: 0, EndMS: 500},
		// 200ms of silence, inside the absorption window.
		{Word: "second", StartMS: 700, EndMS: 1200},
	}
	timings, err := engine.Align(segments("first", "second"), words, 1200)
	if err != nil {
		t.Fatalf("Align failed: %v", err)
	}
	if timings[0].EndMS != 700 {
		t.Fatalf("short gap should extend the earlier segment, got end %d", timings[0].EndMS)
	}
}

func TestAlignAssignsLongSilenceToFollowingSegment(t *testing.T) {
	engine := newEngine(t)
	words := []media.WordTimestamp{
		{Word: "first", StartMS: 0, EndMS: 500},
		// A full second of silence, past the absorption window.
		{Word: "second", StartMS: 1500, EndMS: 2000},
	}
	timings, err := engine.Align(segments("first", "second"), words, 2000)
	if err != nil {
		t.Fatalf("Align failed: %v", err)
	}
	if timings[0].EndMS != 500 {
		t.Fatalf("long silence should not stretch the earlier segment, got end %d", timings[0].EndMS)
	}
	if timings[1].StartMS != 500 || timings[1].EndMS != 2000 {
		t.Fatalf("silence should belong to the following segment: %+v", timings[1])
	}
}

func TestAlignTimingsAreGaplessAndMonotonic(t *testing.T) {
	engine := newEngine(t)
	words := wordTrack([]string{
		"alpha", "beta", "gamma", "delta", "epsilon",
		"zeta", "eta", "theta", "iota", "kappa",
	}, 300)
	segs := segments("alpha beta", "mismatched entirely", "eta theta", "iota kappa")
	timings, err := engine.Align(segs, words, 3000)
	if err != nil {
		t.Fatalf("Align failed: %v", err)
	}
	if err := media.ValidateTimings(timings, 3000); err != nil {
		t.Fatalf("invariant violated: %v", err)
	}
	for i, timing := range timings {
		if timing.DurationMS() < 0 {
			t.Fatalf("timing %d has negative duration", i)
		}
	}
}

func TestAlignRejectsEmptyInput(t *testing.T) {
	engine := newEngine(t)
	if _, err := engine.Align(nil, nil, 1000); err == nil {
		t.Fatal("expected error for empty segment list")
	}
	if _, err := engine.Align(segments("hello"), nil, 0); err == nil {
		t.Fatal("expected error without words or duration")
	}
}

func TestAlignDerivesDurationFromLastWord(t *testing.T) {
	engine := newEngine(t)
	words := wordTrack([]string{"only", "words"}, 400)
	timings, err := engine.Align(segments("only words"), words, 0)
	if err != nil {
		t.Fatalf("Align failed: %v", err)
	}
	if timings[0].EndMS != 800 {
		t.Fatalf("expected track end 800, got %d", timings[0].EndMS)
	}
}
