package ctest

import (
	"fmt"
	"sort"
	"strings"
)

// MessageID names a user-visible string. The IDs double as translation keys.
type MessageID string

const (
	MsgFormSent          MessageID = "FormSent"
	MsgUnknown           MessageID = "UnknownError"
	MsgSendError         MessageID = "SendError"
	MsgRequestFailed     MessageID = "RequestFailed"
	MsgTransfer          MessageID = "Transfer"
	MsgSend              MessageID = "Send"
	MsgSent              MessageID = "AlreadySent"
	MsgResult            MessageID = "ResultLine"
	MsgSaved             MessageID = "ResultSaved"
	MsgGivenHint         MessageID = "GivenHint"
	MsgMissingInput      MessageID = "MissingInput"
	MsgGenerationFailed  MessageID = "GenerationFailed"
	MsgPDFFailed         MessageID = "PDFGenerationFailed"
	MsgNoAnswers         MessageID = "NoAnswers"
	MsgHintNothingToShow MessageID = "HintNothingToShow"
)

// Translator resolves a message ID with optional template data.
type Translator func(id MessageID, data map[string]any) string

// Severity selects the alert style.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityDanger  Severity = "danger"
)

// Message is a dismissible alert.
type Message struct {
	Lines    []string
	Severity Severity
}

// Empty reports whether there is nothing to show.
func (m Message) Empty() bool {
	return len(m.Lines) == 0
}

// Text joins the lines with newlines.
func (m Message) Text() string {
	return strings.Join(m.Lines, "\n")
}

// StaticTranslator serves messages from a fixed table. Template data is
// substituted for {{.Key}} placeholders. Missing IDs resolve to the ID itself.
func StaticTranslator(table map[MessageID]string) Translator {
	return func(id MessageID, data map[string]any) string {
		s, ok := table[id]
		if !ok {
			return string(id)
		}
		keys := make([]string, 0, len(data))
		for k := range data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			s = strings.ReplaceAll(s, "{{."+k+"}}", fmt.Sprint(data[k]))
		}
		return s
	}
}
