package repository

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/stemsi/quizspin-backend/internal/model"
)

// Parse errors.
var (
	ErrUnknownBankShape = errors.New("unrecognized bank shape")
	ErrEmptyBank        = errors.New("bank contains no questions")
	ErrUpstreamError    = errors.New("bank upstream reported an error")
)

// bankShape tags the two layouts the upstream spreadsheet may emit.
type bankShape int

const (
	shapeUnknown bankShape = iota
	// shapeNested: {"Matematika": [{"Receh": [...], "Sedang": [...]}], ...}
	shapeNested
	// shapeRows: [{"kategori": "...", "tingkat": "...", "soal": "...", ...}, ...]
	shapeRows
)

// rawQuestion tolerates loosely typed spreadsheet output.
type rawQuestion struct {
	Kategori looseString     `json:"kategori"`
	Tingkat  looseString     `json:"tingkat"`
	Tipe     looseString     `json:"tipe"`
	Soal     looseString     `json:"soal"`
	PgA      looseString     `json:"pg_a"`
	PgB      looseString     `json:"pg_b"`
	PgC      looseString     `json:"pg_c"`
	PgD      looseString     `json:"pg_d"`
	Jawaban  json.RawMessage `json:"jawaban"`
	Waktu    json.RawMessage `json:"waktu"`
}

// looseString accepts a JSON string, number or bool; spreadsheet cells holding
// digits come through as numbers.
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*s = ""
	case len(data) > 0 && data[0] == '"':
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = looseString(v)
	default:
		*s = looseString(data)
	}
	return nil
}

func detectShape(data []byte) bankShape {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return shapeUnknown
	}
	switch trimmed[0] {
	case '{':
		return shapeNested
	case '[':
		return shapeRows
	}
	return shapeUnknown
}

// ParseBank normalizes either upstream layout into a model.Bank. Rows with an
// unknown difficulty, a missing category or an empty prompt are dropped.
func ParseBank(data []byte) (model.Bank, error) {
	var (
		bank model.Bank
		err  error
	)
	switch detectShape(data) {
	case shapeNested:
		bank, err = parseNested(data)
	case shapeRows:
		bank, err = parseRows(data)
	default:
		return nil, ErrUnknownBankShape
	}
	if err != nil {
		return nil, err
	}
	if bank.Empty() {
		return nil, ErrEmptyBank
	}
	return bank, nil
}

func parseNested(data []byte) (model.Bank, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("decode nested bank: %w", err)
	}
	if msg, ok := top["error"]; ok {
		return nil, fmt.Errorf("%w: %s", ErrUpstreamError, strings.Trim(string(msg), `"`))
	}

	bank := model.Bank{}
	for cat, raw := range top {
		cat = strings.TrimSpace(cat)
		if cat == "" {
			continue
		}
		var groups []map[string][]rawQuestion
		if err := json.Unmarshal(raw, &groups); err != nil {
			return nil, fmt.Errorf("%w: category %q is not a list of difficulty groups", ErrUnknownBankShape, cat)
		}
		if len(groups) == 0 {
			continue
		}
		// Only the first difficulty group is read.
		for tier, rows := range groups[0] {
			diff := model.Difficulty(strings.TrimSpace(tier))
			if !diff.Valid() {
				continue
			}
			for _, r := range rows {
				if q, ok := normalizeQuestion(r); ok {
					appendQuestion(bank, cat, diff, q)
				}
			}
		}
	}
	return bank, nil
}

func parseRows(data []byte) (model.Bank, error) {
	var rows []rawQuestion
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode bank rows: %w", err)
	}

	bank := model.Bank{}
	for _, r := range rows {
		cat := strings.TrimSpace(string(r.Kategori))
		diff := model.Difficulty(strings.TrimSpace(string(r.Tingkat)))
		if cat == "" || !diff.Valid() {
			continue
		}
		if q, ok := normalizeQuestion(r); ok {
			appendQuestion(bank, cat, diff, q)
		}
	}
	return bank, nil
}

func appendQuestion(bank model.Bank, cat string, diff model.Difficulty, q model.Question) {
	if bank[cat] == nil {
		bank[cat] = map[model.Difficulty][]model.Question{}
	}
	bank[cat][diff] = append(bank[cat][diff], q)
}

func normalizeQuestion(r rawQuestion) (model.Question, bool) {
	soal := strings.TrimSpace(string(r.Soal))
	if soal == "" {
		return model.Question{}, false
	}

	tipe := model.QuestionTypeMultipleChoice
	if strings.EqualFold(strings.TrimSpace(string(r.Tipe)), string(model.QuestionTypeFillIn)) {
		tipe = model.QuestionTypeFillIn
	}

	jawaban := r.Jawaban
	if len(bytes.TrimSpace(jawaban)) == 0 || bytes.Equal(bytes.TrimSpace(jawaban), []byte("null")) {
		jawaban = model.StringAnswer("")
	}

	q := model.Question{
		Tipe:    tipe,
		Soal:    soal,
		Jawaban: jawaban,
		Waktu:   parseSeconds(r.Waktu),
	}
	if tipe == model.QuestionTypeMultipleChoice {
		q.PgA, q.PgB, q.PgC, q.PgD = string(r.PgA), string(r.PgB), string(r.PgC), string(r.PgD)
	}
	return q, true
}

// parseSeconds accepts 45, 45.0 or "45"; anything else falls back to the default.
func parseSeconds(raw json.RawMessage) int {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" {
		return model.DefaultQuestionSeconds
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 1 {
		return model.DefaultQuestionSeconds
	}
	return int(f)
}
