package model

import (
	"encoding/json"
	"strconv"
	"strings"
)

// QuestionType tags the question variant.
type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "Pilihan Ganda"
	QuestionTypeFillIn         QuestionType = "Isian"
)

// DefaultQuestionSeconds is used when a bank row carries no usable time.
const DefaultQuestionSeconds = 30

// Question is a single immutable bank entry.
type Question struct {
	Tipe QuestionType `json:"tipe"`
	Soal string       `json:"soal"`
	PgA  string       `json:"pg_a"`
	PgB  string       `json:"pg_b"`
	PgC  string       `json:"pg_c"`
	PgD  string       `json:"pg_d"`
	// Jawaban is a JSON string for multiple choice ("B. Jakarta") and a
	// string or number for fill-in questions.
	Jawaban json.RawMessage `json:"jawaban"`
	Waktu   int             `json:"waktu"`
}

// IsMultipleChoice reports whether the question shows the four options.
func (q Question) IsMultipleChoice() bool {
	return q.Tipe != QuestionTypeFillIn
}

// Options returns the four option strings in A–D order.
func (q Question) Options() [4]string {
	return [4]string{q.PgA, q.PgB, q.PgC, q.PgD}
}

// AnswerText renders jawaban as display text regardless of its JSON type.
func (q Question) AnswerText() string {
	if len(q.Jawaban) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(q.Jawaban, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(q.Jawaban, &n); err == nil {
		return n.String()
	}
	return string(q.Jawaban)
}

// CorrectLetter returns the option letter prefix of a multiple-choice answer
// ("B. Jakarta" -> "B"), or "" when there is none.
func (q Question) CorrectLetter() string {
	if !q.IsMultipleChoice() {
		return ""
	}
	letter, _, _ := strings.Cut(q.AnswerText(), ".")
	letter = strings.ToUpper(strings.TrimSpace(letter))
	switch letter {
	case "A", "B", "C", "D":
		return letter
	}
	return ""
}

// StringAnswer encodes a plain answer string as jawaban.
func StringAnswer(s string) json.RawMessage {
	raw, _ := json.Marshal(s)
	return raw
}

// NumberAnswer encodes a numeric fill-in answer as jawaban.
func NumberAnswer(n int) json.RawMessage {
	return json.RawMessage(strconv.Itoa(n))
}
