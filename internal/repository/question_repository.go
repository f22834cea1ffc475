package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quizient/certlab-backend/internal/model"
)

// QuestionRepository reads the question bank. Candidate-facing reads never
// include the answer key; grading fetches it separately.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// AnswerKey is the grading-side view of one question.
type AnswerKey struct {
	QuestionID  int
	Kind        model.InteractionKind
	OptionIDs   []int
	Pairs       map[int]int
	Explanation string
}

const questionColumns = `id, kind, text, COALESCE(media_ref, ''), options, pairs`

// CountAvailable returns how many questions match the exam type and tag
// filters. The selection endpoint reports this count to the client when a
// request cannot be satisfied.
func (r *QuestionRepository) CountAvailable(ctx context.Context, examType string, filters map[string]string) (int, error) {
	query, args := filterClause(
		`SELECT COUNT(*) FROM questions WHERE exam_type = $1`, examType, filters)

	var count int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	return count, nil
}

// SelectRandom picks count random questions for the exam type and filters.
func (r *QuestionRepository) SelectRandom(ctx context.Context, examType string, filters map[string]string, count int) ([]model.Question, error) {
	query, args := filterClause(
		`SELECT `+questionColumns+` FROM questions WHERE exam_type = $1`, examType, filters)
	query += fmt.Sprintf(" ORDER BY RANDOM() LIMIT $%d", len(args)+1)
	args = append(args, count)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select questions: %w", err)
	}
	defer rows.Close()

	return scanQuestions(rows)
}

// SelectByIDs fetches specific questions, preserving the requested order.
func (r *QuestionRepository) SelectByIDs(ctx context.Context, ids []int) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("select questions by id: %w", err)
	}
	defer rows.Close()

	fetched, err := scanQuestions(rows)
	if err != nil {
		return nil, err
	}

	byID := make(map[int]model.Question, len(fetched))
	for _, q := range fetched {
		byID[q.ID] = q
	}
	ordered := make([]model.Question, 0, len(ids))
	for _, id := range ids {
		q, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("question %d not found", id)
		}
		ordered = append(ordered, q)
	}
	return ordered, nil
}

// GetByID fetches one question.
func (r *QuestionRepository) GetByID(ctx context.Context, id int) (*model.Question, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE id = $1`, id)
	q, err := scanQuestion(row)
	if err != nil {
		return nil, fmt.Errorf("get question %d: %w", id, err)
	}
	return q, nil
}

// AnswerKeys fetches the grading key for a set of questions.
func (r *QuestionRepository) AnswerKeys(ctx context.Context, ids []int) (map[int]AnswerKey, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, kind, correct_option_ids, correct_pairs, COALESCE(explanation, '')
		 FROM questions WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("select answer keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[int]AnswerKey, len(ids))
	for rows.Next() {
		var (
			key      AnswerKey
			rawPairs []byte
		)
		if err := rows.Scan(&key.QuestionID, &key.Kind, &key.OptionIDs, &rawPairs, &key.Explanation); err != nil {
			return nil, fmt.Errorf("scan answer key: %w", err)
		}
		if len(rawPairs) > 0 {
			var pairs map[string]int
			if err := json.Unmarshal(rawPairs, &pairs); err != nil {
				return nil, fmt.Errorf("parse correct pairs for question %d: %w", key.QuestionID, err)
			}
			key.Pairs = make(map[int]int, len(pairs))
			for left, right := range pairs {
				l, err := strconv.Atoi(left)
				if err != nil {
					return nil, fmt.Errorf("correct pair left id %q for question %d: %w", left, key.QuestionID, err)
				}
				key.Pairs[l] = right
			}
		}
		keys[key.QuestionID] = key
	}
	return keys, rows.Err()
}

// filterClause appends one jsonb containment condition per tag filter.
func filterClause(base, examType string, filters map[string]string) (string, []any) {
	args := []any{examType}
	for k, v := range filters {
		tag, _ := json.Marshal(map[string]string{k: v})
		args = append(args, tag)
		base += fmt.Sprintf(" AND tags @> $%d", len(args))
	}
	return base, args
}

func scanQuestions(rows pgx.Rows) ([]model.Question, error) {
	var questions []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, *q)
	}
	return questions, rows.Err()
}

func scanQuestion(row pgx.Row) (*model.Question, error) {
	var (
		q        model.Question
		rawOpts  []byte
		rawPairs []byte
	)
	if err := row.Scan(&q.ID, &q.Kind, &q.Text, &q.MediaRef, &rawOpts, &rawPairs); err != nil {
		return nil, err
	}
	if len(rawOpts) > 0 {
		if err := json.Unmarshal(rawOpts, &q.Options); err != nil {
			return nil, fmt.Errorf("parse options for question %d: %w", q.ID, err)
		}
	}
	if len(rawPairs) > 0 {
		if err := json.Unmarshal(rawPairs, &q.Pairs); err != nil {
			return nil, fmt.Errorf("parse pair spec for question %d: %w", q.ID, err)
		}
	}
	return &q, nil
}
