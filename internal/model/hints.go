package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Reveal holds the characters revealed by hints for one blank, by position.
// The zero rune marks a position that was never revealed.
type Reveal []rune

// Set records r at position pos, growing the reveal as needed.
func (r *Reveal) Set(pos int, ch rune) {
	if pos < 0 {
		return
	}
	for len(*r) <= pos {
		*r = append(*r, 0)
	}
	(*r)[pos] = ch
}

// At returns the revealed rune at pos, or 0.
func (r Reveal) At(pos int) rune {
	if pos < 0 || pos >= len(r) {
		return 0
	}
	return r[pos]
}

// Count returns how many positions were revealed.
func (r Reveal) Count() int {
	n := 0
	for _, ch := range r {
		if ch != 0 {
			n++
		}
	}
	return n
}

// String renders unrevealed positions as the blank marker, e.g. "__l".
func (r Reveal) String() string {
	var sb strings.Builder
	for _, ch := range r {
		if ch == 0 {
			sb.WriteRune(BlankMarker)
			continue
		}
		sb.WriteRune(ch)
	}
	return sb.String()
}

// MarshalJSON encodes the reveal in the backend's string form. A revealed
// BlankMarker reads back as a hole in this form; use Slots where the value
// has to survive a round trip.
func (r Reveal) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON accepts the string form ("__l") or an array with null holes.
func (r *Reveal) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		out := make(Reveal, 0, len(s))
		for _, ch := range s {
			if ch == BlankMarker {
				ch = 0
			}
			out = append(out, ch)
		}
		*r = out
		return nil
	}
	var items []*string
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("decode hint reveal: %w", err)
	}
	out := make(Reveal, len(items))
	for i, it := range items {
		if it == nil || *it == "" {
			continue
		}
		out[i] = []rune(*it)[0]
	}
	*r = out
	return nil
}

// GivenHints maps blank index to its reveal. Sparse: only hinted blanks are present.
type GivenHints map[int]Reveal

// Slots returns the array form of each reveal, with nil for unrevealed
// positions. Unlike the string form it keeps a revealed BlankMarker.
func (r Reveal) Slots() []*string {
	out := make([]*string, len(r))
	for i, ch := range r {
		if ch == 0 {
			continue
		}
		s := string(ch)
		out[i] = &s
	}
	return out
}

// Slots returns the hints in the array form accepted by UnmarshalJSON.
func (g GivenHints) Slots() map[int][]*string {
	out := make(map[int][]*string, len(g))
	for idx, r := range g {
		out[idx] = r.Slots()
	}
	return out
}

// Total returns the number of revealed characters across all blanks.
func (g GivenHints) Total() int {
	n := 0
	for _, r := range g {
		n += r.Count()
	}
	return n
}
