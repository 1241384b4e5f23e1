package ctest

import (
	"strings"
	"testing"

	"github.com/cloze-lab/ctest/internal/model"
)

func specsOf(answers ...string) model.AnswerSpecs {
	specs := make(model.AnswerSpecs, len(answers))
	for i, a := range answers {
		specs[i] = model.AnswerSpec{Answer: a}
	}
	return specs
}

func literalBetween(segs []Segment, from, to int) string {
	var sb strings.Builder
	inside := false
	for _, s := range segs {
		if s.Kind == SegmentBlank {
			if s.Index == from {
				inside = true
				continue
			}
			if s.Index == to {
				break
			}
		}
		if inside && s.Kind == SegmentText {
			sb.WriteString(s.Text)
		}
	}
	return sb.String()
}

func TestParseTwoBlanks(t *testing.T) {
	segs := Parse("___ and ___", specsOf("cat", "dog"))

	var blanks []Segment
	for _, s := range segs {
		if s.Kind == SegmentBlank {
			blanks = append(blanks, s)
		}
	}
	if len(blanks) != 2 {
		t.Fatalf("expected 2 blanks, got %d", len(blanks))
	}
	for i, b := range blanks {
		if b.Index != i {
			t.Errorf("blank %d has index %d", i, b.Index)
		}
		if b.Length != 3 {
			t.Errorf("blank %d length = %d, want 3", i, b.Length)
		}
	}
	if got := literalBetween(segs, 0, 1); got != " and " {
		t.Errorf("literal between blanks = %q, want %q", got, " and ")
	}
}

func TestParseIndexingAndRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		answers []string
	}{
		{"no blanks", "Der Hund schläft.", nil},
		{"single", "Der Hu__ schläft.", []string{"nd"}},
		{"word suffixes", "Die Son__ scheint he__ am Him___.", []string{"ne", "ll", "mel"}},
		{"umlaut answers", "Die Bä___ sind grü_.", []string{"ume", "n"}},
		{"adjacent to punctuation", "Ja, ne__! Doch__.", []string{"in", "ja"}},
		{"leading blank", "__ ist gut.", []string{"Es"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			specs := specsOf(tt.answers...)
			segs := Parse(tt.text, specs)

			if got := BlankCount(segs); got != len(tt.answers) {
				t.Fatalf("BlankCount = %d, want %d", got, len(tt.answers))
			}
			next := 0
			for _, s := range segs {
				if s.Kind != SegmentBlank {
					continue
				}
				if s.Index != next {
					t.Fatalf("blank index %d out of order, want %d", s.Index, next)
				}
				next++
			}
			if got, want := ConsumedLength(segs), len([]rune(tt.text)); got != want {
				t.Errorf("ConsumedLength = %d, want %d", got, want)
			}
		})
	}
}

func TestParseWordsMatchesParse(t *testing.T) {
	texts := []struct {
		text    string
		answers []string
	}{
		{"___ and ___", []string{"cat", "dog"}},
		{"Die Son__ scheint he__ am Him___.", []string{"ne", "ll", "mel"}},
		{"Die Bä___ sind grü_.", []string{"ume", "n"}},
		{"  doppelte  Leer__ichen ", []string{"ze"}},
		{"a__ __", []string{"abc", "de"}},
		{"", nil},
	}

	for _, tt := range texts {
		specs := specsOf(tt.answers...)
		flat := Parse(tt.text, specs)
		words := Flatten(ParseWords(tt.text, specs))

		if BlankCount(flat) != BlankCount(words) {
			t.Errorf("%q: blank count flat=%d words=%d", tt.text, BlankCount(flat), BlankCount(words))
		}
		if ConsumedLength(flat) != ConsumedLength(words) {
			t.Errorf("%q: consumed flat=%d words=%d", tt.text, ConsumedLength(flat), ConsumedLength(words))
		}
		if len(flat) != len(words) {
			t.Fatalf("%q: segment count flat=%d words=%d", tt.text, len(flat), len(words))
		}
		for i := range flat {
			if flat[i] != words[i] {
				t.Errorf("%q: segment %d differs: %+v vs %+v", tt.text, i, flat[i], words[i])
			}
		}
	}
}

func TestParseWordsSpaces(t *testing.T) {
	words := ParseWords("ab c__", specsOf("de"))
	if len(words) != 2 {
		t.Fatalf("expected 2 words, got %d", len(words))
	}
	if !words[0].Space {
		t.Error("first word should be followed by a space")
	}
	if words[1].Space {
		t.Error("last word should not be followed by a space")
	}
	last := words[1].Segments[len(words[1].Segments)-1]
	if last.Kind != SegmentBlank || last.Index != 0 || last.Length != 2 {
		t.Errorf("unexpected trailing segment %+v", last)
	}
}

func TestParseWordsOverrunningBlank(t *testing.T) {
	// The first blank is three runes long and swallows the space.
	words := ParseWords("a__ __", specsOf("abc", "de"))
	if len(words) != 1 {
		t.Fatalf("expected 1 word, got %d", len(words))
	}
	segs := words[0].Segments
	if len(segs) != 3 {
		t.Fatalf("expected 3 segments, got %+v", segs)
	}
	if segs[1].Kind != SegmentBlank || segs[1].Length != 3 || segs[2].Kind != SegmentBlank || segs[2].Index != 1 {
		t.Errorf("unexpected segments %+v", segs)
	}
	if got := ConsumedLength(Flatten(words)); got != 6 {
		t.Errorf("consumed = %d, want 6", got)
	}
}

func TestParseMissingSpecMakesProgress(t *testing.T) {
	tests := []struct {
		name      string
		specs     model.AnswerSpecs
		wantBlank int
		wantText  int
	}{
		{"no spec at all", nil, 0, 3},
		{"zero length", model.AnswerSpecs{0: {Answer: ""}}, 0, 3},
		{"second blank missing", model.AnswerSpecs{0: {Answer: "a"}}, 1, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// "x_y__z": the first blank is one rune, the second two runes.
			segs := Parse("x_y__z", tt.specs)
			blanks, texts := 0, 0
			for _, s := range segs {
				if s.Kind == SegmentBlank {
					blanks++
				} else {
					texts++
				}
			}
			if blanks != tt.wantBlank {
				t.Errorf("blanks = %d, want %d", blanks, tt.wantBlank)
			}
			if texts != tt.wantText {
				t.Errorf("text segments = %d, want %d", texts, tt.wantText)
			}
		})
	}
}

func TestParseUsesSpecLengthNotMarkerRun(t *testing.T) {
	// The explicit length wins over the rune count of the answer.
	specs := model.AnswerSpecs{0: {Answer: "x", Length: 2}}
	segs := Parse("a__b", specs)
	if len(segs) != 3 {
		t.Fatalf("expected 3 segments, got %d: %+v", len(segs), segs)
	}
	if segs[1].Kind != SegmentBlank || segs[1].Length != 2 {
		t.Errorf("unexpected blank segment %+v", segs[1])
	}
	if segs[2].Text != "b" {
		t.Errorf("expected trailing literal b, got %+v", segs[2])
	}
}
