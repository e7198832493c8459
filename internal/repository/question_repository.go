package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/quizspin-backend/internal/model"
)

// QuestionRepository serves the bank from the questions table.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

func (r *QuestionRepository) Name() string { return "postgres" }

// LoadBank reads every active question, keeping each pool in position order
// so that pool indices stay stable between loads.
func (r *QuestionRepository) LoadBank(ctx context.Context) (model.Bank, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT category, difficulty, question_type, prompt, option_a, option_b, option_c, option_d, answer, time_limit_seconds
		 FROM questions
		 WHERE is_active
		 ORDER BY category, difficulty, position, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	bank := model.Bank{}
	for rows.Next() {
		var (
			cat, diff, tipe, answer string
			q                       model.Question
		)
		if err := rows.Scan(&cat, &diff, &tipe, &q.Soal, &q.PgA, &q.PgB, &q.PgC, &q.PgD, &answer, &q.Waktu); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}

		d := model.Difficulty(diff)
		if !d.Valid() {
			continue
		}
		q.Tipe = model.QuestionType(tipe)
		q.Jawaban = model.StringAnswer(answer)
		if q.Waktu < 1 {
			q.Waktu = model.DefaultQuestionSeconds
		}
		appendQuestion(bank, strings.TrimSpace(cat), d, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if bank.Empty() {
		return nil, ErrEmptyBank
	}
	return bank, nil
}

// ReplaceAll swaps the whole table for bank in one transaction. Pool order
// is kept through the position column. Returns the number of rows written.
func (r *QuestionRepository) ReplaceAll(ctx context.Context, bank model.Bank) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM questions`); err != nil {
		return 0, fmt.Errorf("clear questions: %w", err)
	}

	rows := bankRows(bank)
	n, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{"questions"},
		[]string{"category", "difficulty", "position", "question_type", "prompt", "option_a", "option_b", "option_c", "option_d", "answer", "time_limit_seconds"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return 0, fmt.Errorf("copy questions: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

// bankRows flattens bank in a stable category order.
func bankRows(bank model.Bank) [][]interface{} {
	cats := make([]string, 0, len(bank))
	for cat := range bank {
		cats = append(cats, cat)
	}
	sort.Strings(cats)

	var rows [][]interface{}
	for _, cat := range cats {
		for _, diff := range model.Difficulties {
			for pos, q := range bank[cat][diff] {
				rows = append(rows, []interface{}{
					cat, string(diff), pos, string(q.Tipe), q.Soal,
					q.PgA, q.PgB, q.PgC, q.PgD, q.AnswerText(), q.Waktu,
				})
			}
		}
	}
	return rows
}
