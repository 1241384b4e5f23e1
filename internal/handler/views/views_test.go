package views

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloze-lab/ctest/internal/ctest"
	"github.com/cloze-lab/ctest/internal/model"
)

func TestCTestTextKeepsBlanksInsideWords(t *testing.T) {
	f := ctest.Build("Der Hu__ bellt", model.AnswerSpecs{0: {Answer: "nd"}}, ctest.ModeEditable)

	var buf bytes.Buffer
	require.NoError(t, CTestText(f).Render(context.Background(), &buf))
	body := buf.String()

	assert.Equal(t, `<div class="ctest-text">`+
		`<span class="word">Der</span> `+
		`<span class="word">Hu<input type="text" autocomplete="off" spellcheck="false" name="blank_0" class="blank" data-index="0" maxlength="2" style="width: 2em;" value=""></span> `+
		`<span class="word">bellt</span>`+
		`</div>`, body)
}

func TestBlankFieldFeedback(t *testing.T) {
	fld := ctest.NewField(3, 2, ctest.ModeReadOnly)
	fld.Value = "nx"
	fld.Mark = ctest.MarkIncorrect
	fld.Expected = "nd"
	fld.GivenHint = "_d"

	var buf bytes.Buffer
	require.NoError(t, BlankField(fld).Render(context.Background(), &buf))
	body := buf.String()

	assert.Contains(t, body, `class="blank readonly is-incorrect"`)
	assert.Contains(t, body, `value="nx" readonly tabindex="-1">`+
		`<span class="expected">nd</span><span class="given-hint">_d</span>`)
	assert.NotContains(t, body, "disabled")
}

func TestBlankFieldDisabled(t *testing.T) {
	fld := ctest.NewField(0, 4, ctest.ModeEditable)
	fld.Value = "Hund"
	fld.Disabled = true
	fld.Mark = ctest.MarkCorrect
	fld.Expected = "Hund"

	var buf bytes.Buffer
	require.NoError(t, BlankField(fld).Render(context.Background(), &buf))
	body := buf.String()

	assert.Contains(t, body, `class="blank is-correct"`)
	assert.Contains(t, body, `style="width: 3.2em;" value="Hund" disabled>`)
	assert.NotContains(t, body, "expected", "correct answers carry no solution")
}

func TestBlankFieldNil(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, BlankField(nil).Render(context.Background(), &buf))
	assert.Empty(t, buf.String())
}
