// Package alignment maps ordered narration segments onto the
// word-level timestamps of a synthesized audio track. Matching
// cascades from exact contiguous token runs to fuzzy windows to a
// proportional split, so every segment always receives a timing. The
// result is a gapless, non-overlapping cover of the full track in
// segment order.
package alignment
