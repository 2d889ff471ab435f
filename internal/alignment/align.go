package alignment

import (
	"log/slog"

	"reelforge/internal/config"
	"reelforge/internal/logging"
	"reelforge/internal/media"
	"reelforge/internal/services"
)

// Engine assigns a SegmentTiming to every narration segment. Safe for
// concurrent use; Align holds no state between calls.
type Engine struct {
	threshold float64
	maxGapMS  int64
	logger    *slog.Logger
}

// New builds an engine from the configured alignment tunables.
func New(cfg *config.Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{
		threshold: cfg.Alignment.FuzzyThreshold,
		maxGapMS:  int64(cfg.Alignment.MaxGapMS),
		logger:    logger.With(logging.String(logging.FieldComponent, "alignment")),
	}
}

// tokenStream is the normalized transcript: one entry per word that
// survives normalization, with a pointer back to its source word.
type tokenStream struct {
	tokens  []string
	wordIdx []int
}

func newTokenStream(words []media.WordTimestamp) tokenStream {
	stream := tokenStream{
		tokens:  make([]string, 0, len(words)),
		wordIdx: make([]int, 0, len(words)),
	}
	for i, word := range words {
		token := normalizeWord(word.Word)
		if token == "" {
			continue
		}
		stream.tokens = append(stream.tokens, token)
		stream.wordIdx = append(stream.wordIdx, i)
	}
	return stream
}

// span is one segment's resolved position in the transcript. Unmatched
// spans carry only a weight and are placed by the proportional pass.
type span struct {
	matched   bool
	firstWord int
	lastWord  int
	weight    int
}

// Align maps segments onto the word timestamps of one audio track.
// totalDurationMS may be zero, in which case the last word's end is
// used. The returned timings are gapless, non-overlapping, and cover
// the full track.
func (e *Engine) Align(segments []media.TextSegment, words []media.WordTimestamp, totalDurationMS int64) ([]media.SegmentTiming, error) {
	if len(segments) == 0 {
		return nil, services.Wrap(services.ErrValidation, "alignment", "align", "no segments to align", nil)
	}
	if totalDurationMS <= 0 {
		if len(words) == 0 {
			return nil, services.Wrap(services.ErrValidation, "alignment", "align", "no words and no track duration", nil)
		}
		totalDurationMS = words[len(words)-1].EndMS
	}

	stream := newTokenStream(words)
	spans := make([]span, len(segments))
	cursor := 0
	fallbacks := 0
	for i, segment := range segments {
		tokens := normalizeTokens(segment.Raw)
		if len(tokens) == 0 {
			tokens = normalizeTokens(segment.SpokenText())
		}
		pos, size, method := e.locate(stream, cursor, tokens)
		if pos < 0 {
			weight := len(tokens)
			if weight == 0 {
				weight = 1
			}
			spans[i] = span{weight: weight}
			fallbacks++
			continue
		}
		spans[i] = span{
			matched:   true,
			firstWord: stream.wordIdx[pos],
			lastWord:  stream.wordIdx[pos+size-1],
		}
		cursor = pos + size
		if method == "fuzzy" {
			e.logger.Debug("segment matched fuzzily",
				logging.Int("segment", i),
				logging.Int("window_start", pos),
				logging.Int("window_size", size))
		}
	}
	if fallbacks > 0 {
		e.logger.Warn("segments placed by proportional fallback",
			logging.Int("count", fallbacks),
			logging.Int("segments", len(segments)),
			logging.String(logging.FieldEventType, "alignment_fallback"))
	}

	rawStart, rawEnd := e.resolveSpans(spans, words, totalDurationMS)
	timings := e.stitch(rawStart, rawEnd, totalDurationMS)
	if err := media.ValidateTimings(timings, totalDurationMS); err != nil {
		return nil, services.Wrap(services.ErrValidation, "alignment", "align", "timing invariant violated", err)
	}
	return timings, nil
}

// locate finds the segment's token run in the stream at or after
// cursor: exact contiguous match first, then the best fuzzy window at
// or above the similarity threshold. Ties prefer the earliest window.
func (e *Engine) locate(stream tokenStream, cursor int, tokens []string) (pos, size int, method string) {
	if len(tokens) == 0 || cursor >= len(stream.tokens) {
		return -1, 0, ""
	}
	for s := cursor; s+len(tokens) <= len(stream.tokens); s++ {
		if equalTokens(stream.tokens[s:s+len(tokens)], tokens) {
			return s, len(tokens), "exact"
		}
	}

	bestScore := 0.0
	bestPos, bestSize := -1, 0
	for _, windowSize := range []int{len(tokens), len(tokens) - 1, len(tokens) + 1} {
		if windowSize < 1 {
			continue
		}
		for s := cursor; s+windowSize <= len(stream.tokens); s++ {
			score := tokenSimilarity(tokens, stream.tokens[s:s+windowSize])
			if score > bestScore {
				bestScore = score
				bestPos = s
				bestSize = windowSize
			}
		}
	}
	if bestPos >= 0 && bestScore >= e.threshold {
		return bestPos, bestSize, "fuzzy"
	}
	return -1, 0, ""
}

func equalTokens(a, b []string) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// tokenSimilarity scores two token runs by multiset overlap, scaled to
// [0,1]: twice the common token count over the combined length.
func tokenSimilarity(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	counts := make(map[string]int, len(a))
	for _, token := range a {
		counts[token]++
	}
	common := 0
	for _, token := range b {
		if counts[token] > 0 {
			counts[token]--
			common++
		}
	}
	return float64(2*common) / float64(len(a)+len(b))
}

// resolveSpans turns spans into provisional start/end times. Runs of
// unmatched segments split the audio between their matched neighbours
// proportionally by token count.
func (e *Engine) resolveSpans(spans []span, words []media.WordTimestamp, totalDurationMS int64) (rawStart, rawEnd []int64) {
	n := len(spans)
	rawStart = make([]int64, n)
	rawEnd = make([]int64, n)
	for i, sp := range spans {
		if sp.matched {
			rawStart[i] = words[sp.firstWord].StartMS
			rawEnd[i] = words[sp.lastWord].EndMS
		}
	}
	i := 0
	for i < n {
		if spans[i].matched {
			i++
			continue
		}
		runStart := i
		for i < n && !spans[i].matched {
			i++
		}
		e.placeRun(spans, rawStart, rawEnd, runStart, i, totalDurationMS)
	}
	return rawStart, rawEnd
}

// placeRun assigns times to the unmatched run [a,b). The run normally
// splits the silence between its matched neighbours proportionally by
// token count. A run pinched between adjacent transcript words has no
// silence to split; it then borrows from the neighbouring spans,
// sharing the enclosing window by weight so every segment keeps a
// positive duration.
func (e *Engine) placeRun(spans []span, rawStart, rawEnd []int64, a, b int, totalDurationMS int64) {
	total := int64(0)
	for j := a; j < b; j++ {
		total += int64(spans[j].weight)
	}
	left := int64(0)
	if a > 0 {
		left = rawEnd[a-1]
	}
	right := totalDurationMS
	if b < len(spans) {
		right = rawStart[b]
	}
	if right-left >= total {
		distribute(spans[a:b], rawStart[a:b], rawEnd[a:b], left, right)
		return
	}

	leftWeight, rightWeight := int64(0), int64(0)
	encLeft, encRight := int64(0), totalDurationMS
	if a > 0 {
		encLeft = rawStart[a-1]
		leftWeight = int64(spans[a-1].lastWord - spans[a-1].firstWord + 1)
	}
	if b < len(spans) {
		encRight = rawEnd[b]
		rightWeight = int64(spans[b].lastWord - spans[b].firstWord + 1)
	}
	window := encRight - encLeft
	combined := leftWeight + total + rightWeight
	runLeft := encLeft + window*leftWeight/combined
	runRight := encRight - window*rightWeight/combined
	if a > 0 {
		rawEnd[a-1] = runLeft
	}
	if b < len(spans) {
		rawStart[b] = runRight
	}
	distribute(spans[a:b], rawStart[a:b], rawEnd[a:b], runLeft, runRight)
}

func distribute(spans []span, rawStart, rawEnd []int64, left, right int64) {
	if right < left {
		right = left
	}
	total := int64(0)
	for _, sp := range spans {
		total += int64(sp.weight)
	}
	cum := int64(0)
	for j := range spans {
		rawStart[j] = left + (right-left)*cum/total
		cum += int64(spans[j].weight)
		rawEnd[j] = left + (right-left)*cum/total
	}
}

// stitch closes the provisional times into a gapless cover. Silence up
// to maxGapMS after a segment's last word is absorbed into that
// segment; longer silence belongs to the following segment.
func (e *Engine) stitch(rawStart, rawEnd []int64, totalDurationMS int64) []media.SegmentTiming {
	n := len(rawStart)
	timings := make([]media.SegmentTiming, n)
	start := int64(0)
	for i := 0; i < n; i++ {
		end := totalDurationMS
		if i < n-1 {
			end = rawStart[i+1]
			if gap := rawStart[i+1] - rawEnd[i]; gap > e.maxGapMS {
				end = rawEnd[i]
			}
			if end < start {
				end = start
			}
			if end > totalDurationMS {
				end = totalDurationMS
			}
		}
		timings[i] = media.SegmentTiming{Index: i, StartMS: start, EndMS: end}
		start = end
	}
	return timings
}
