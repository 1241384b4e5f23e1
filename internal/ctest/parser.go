// Package ctest holds the pure C-Test core: parsing blanked text into segments,
// the index-aligned answer form, feedback decoration, hints and the submission
// state machine. It has no knowledge of HTTP or HTML.
package ctest

import (
	"log/slog"

	"github.com/cloze-lab/ctest/internal/model"
)

// SegmentKind distinguishes literal text from blanks.
type SegmentKind int

const (
	SegmentText SegmentKind = iota
	SegmentBlank
)

// Segment is one unit of rendered output.
// Text segments carry a single rune; blank segments carry the blank index and
// the number of marker runes they consumed.
type Segment struct {
	Kind   SegmentKind
	Text   string
	Index  int
	Length int
}

// Word is a space-delimited run of segments. Space reports whether a single
// literal space follows the word.
type Word struct {
	Segments []Segment
	Space    bool
}

// Parse walks text once, left to right. A blank marker starts blank number i,
// which consumes specs[i].Len() runes; the text itself does not say how long a
// blank is. A blank without a usable spec is skipped one rune at a time.
func Parse(text string, specs model.AnswerSpecs) []Segment {
	runes := []rune(text)
	segs, _ := parseRunes(runes, specs, 0)
	return segs
}

func parseRunes(runes []rune, specs model.AnswerSpecs, blankIndex int) ([]Segment, int) {
	var segs []Segment
	i := 0
	for i < len(runes) {
		if runes[i] != model.BlankMarker {
			segs = append(segs, Segment{Kind: SegmentText, Text: string(runes[i])})
			i++
			continue
		}
		length := 0
		if spec, ok := specs[blankIndex]; ok {
			length = spec.Len()
		}
		if length <= 0 {
			slog.Warn("no valid answer length for blank", "blank_index", blankIndex, "offset", i)
			i++
			continue
		}
		if overrunsWord(runes[i:min(i+length, len(runes))]) {
			slog.Warn("blank overruns its word", "blank_index", blankIndex, "offset", i, "length", length)
		}
		segs = append(segs, Segment{Kind: SegmentBlank, Index: blankIndex, Length: length})
		i += length
		blankIndex++
	}
	return segs, blankIndex
}

// ParseWords is the word-boundary variant of Parse: the segments of Parse are
// grouped into words at each literal space, so letter-level and word-level
// spans can be rendered separately. A blank that overruns its word stays whole
// inside the word it starts in, so both variants consume the same runes.
func ParseWords(text string, specs model.AnswerSpecs) []Word {
	var words []Word
	var cur Word
	for _, seg := range Parse(text, specs) {
		if seg.Kind == SegmentText && seg.Text == " " {
			cur.Space = true
			words = append(words, cur)
			cur = Word{}
			continue
		}
		cur.Segments = append(cur.Segments, seg)
	}
	if len(cur.Segments) > 0 {
		words = append(words, cur)
	}
	return words
}

func overrunsWord(span []rune) bool {
	for _, r := range span {
		if r == ' ' {
			return true
		}
	}
	return false
}

// Flatten turns words back into a flat segment list, emitting the separating
// spaces as text segments.
func Flatten(words []Word) []Segment {
	var segs []Segment
	for _, w := range words {
		segs = append(segs, w.Segments...)
		if w.Space {
			segs = append(segs, Segment{Kind: SegmentText, Text: " "})
		}
	}
	return segs
}

// BlankCount returns the number of blank segments.
func BlankCount(segs []Segment) int {
	n := 0
	for _, s := range segs {
		if s.Kind == SegmentBlank {
			n++
		}
	}
	return n
}

// ConsumedLength returns the number of runes of the source text the segments cover.
func ConsumedLength(segs []Segment) int {
	n := 0
	for _, s := range segs {
		if s.Kind == SegmentBlank {
			n += s.Length
			continue
		}
		n += len([]rune(s.Text))
	}
	return n
}
