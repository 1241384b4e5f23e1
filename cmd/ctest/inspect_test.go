package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/cloze-lab/ctest/internal/model"
)

func TestInspectAligned(t *testing.T) {
	specs := model.AnswerSpecs{
		0: {Answer: "nd", Length: 2},
		1: {Answer: "lt"},
	}
	var buf bytes.Buffer
	if err := inspect(&buf, "Der Hu__ bel__ laut.", specs); err != nil {
		t.Fatalf("inspect: %v", err)
	}
	out := buf.String()

	for _, want := range []string{"Hu[0]", "bel[1]", "blanks: 2 of 2 answers", "consumed: 20 of 20 runes"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "warning") {
		t.Errorf("unexpected alignment warning:\n%s", out)
	}
}

func TestInspectMisaligned(t *testing.T) {
	specs := model.AnswerSpecs{0: {Answer: "nd"}}
	var buf bytes.Buffer
	if err := inspect(&buf, "Der Hu__ bel__ laut.", specs); err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if !strings.Contains(buf.String(), "warning: text and answers are not aligned") {
		t.Errorf("expected warning:\n%s", buf.String())
	}
}

func TestNormalizeBasePath(t *testing.T) {
	tests := map[string]string{
		"":        "",
		"/":       "",
		"ctest":   "/ctest",
		"/ctest/": "/ctest",
	}
	for in, want := range tests {
		if got := normalizeBasePath(in); got != want {
			t.Errorf("normalizeBasePath(%q) = %q, want %q", in, got, want)
		}
	}
}
