package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cloze-lab/ctest/internal/ctest"
	"github.com/cloze-lab/ctest/internal/model"
)

func runInspect(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)

	text, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read text: %w", err)
	}
	raw, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("read answers: %w", err)
	}
	var specs model.AnswerSpecs
	if err := json.Unmarshal(raw, &specs); err != nil {
		return fmt.Errorf("parse answers: %w", err)
	}

	return inspect(cmd.OutOrStdout(), string(text), specs)
}

// inspect prints one row per blank and a summary of how much of the text the
// blanks and literals cover.
func inspect(out io.Writer, text string, specs model.AnswerSpecs) error {
	segs := ctest.Flatten(ctest.ParseWords(text, specs))

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tOFFSET\tLENGTH\tANSWER\tCONTEXT")
	offset := 0
	for i, s := range segs {
		if s.Kind == ctest.SegmentBlank {
			fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%s\n", s.Index, offset, s.Length, specs[s.Index].Answer, blankContext(segs, i))
			offset += s.Length
			continue
		}
		offset += len([]rune(s.Text))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	blanks := ctest.BlankCount(segs)
	consumed := ctest.ConsumedLength(segs)
	total := len([]rune(text))
	fmt.Fprintf(out, "\nblanks: %d of %d answers\nconsumed: %d of %d runes\n", blanks, len(specs), consumed, total)
	if blanks != len(specs) || consumed != total {
		fmt.Fprintln(out, "warning: text and answers are not aligned")
	}
	return nil
}

// blankContext returns the literal word around segment i with the blank shown as
// a bracketed placeholder.
func blankContext(segs []ctest.Segment, i int) string {
	start := i
	for start > 0 && !(segs[start-1].Kind == ctest.SegmentText && segs[start-1].Text == " ") {
		start--
	}
	end := i + 1
	for end < len(segs) && !(segs[end].Kind == ctest.SegmentText && segs[end].Text == " ") {
		end++
	}
	var s string
	for j := start; j < end; j++ {
		if segs[j].Kind == ctest.SegmentBlank {
			if j == i {
				s += "[" + fmt.Sprint(segs[j].Index) + "]"
			} else {
				s += "[]"
			}
			continue
		}
		s += segs[j].Text
	}
	return s
}
