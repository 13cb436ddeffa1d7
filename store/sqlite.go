package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/brunobiangulo/examparse/exam"
)

func init() {
	sqlite_vec.Auto()
}

// SQLite stores exams in one database file.
type SQLite struct {
	db      *sql.DB
	stemDim int
}

// NewSQLite opens (or creates) a SQLite database at the given path and
// initialises the schema including the sqlite-vec stem index.
func NewSQLite(dbPath string, stemDim int) (*SQLite, error) {
	if stemDim <= 0 {
		return nil, fmt.Errorf("stem vector dimension must be positive, got %d", stemDim)
	}
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if _, err := db.Exec(schemaSQL(stemDim)); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &SQLite{db: db, stemDim: stemDim}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for advanced queries.
func (s *SQLite) DB() *sql.DB {
	return s.db
}

// StemDim returns the configured stem vector dimension.
func (s *SQLite) StemDim() int {
	return s.stemDim
}

func (s *SQLite) examID(ctx context.Context, q interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}, name string) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, "SELECT id FROM exams WHERE name = ?", name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return id, err
}

func (s *SQLite) Load(ctx context.Context, name string) (exam.Exam, error) {
	id, err := s.examID(ctx, s.db, name)
	if err != nil {
		return exam.Exam{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT question_id, pdf_question_number, source_pdf, page_number,
			question_type, question, choices, pdf_answer, web_recommended_answer,
			ai_recommended_answer, web_explanation, ai_explanation, images, user_answer
		FROM questions WHERE exam_id = ? ORDER BY position
	`, id)
	if err != nil {
		return exam.Exam{}, fmt.Errorf("loading exam %s: %w", name, err)
	}
	defer rows.Close()

	e := exam.Exam{Name: name, Questions: []exam.Record{}}
	for rows.Next() {
		var r exam.Record
		var qtype, choices, images string
		var pdfAns, webAns, aiAns, webExpl, aiExpl, user sql.NullString
		if err := rows.Scan(&r.QuestionID, &r.PDFQuestionNumber, &r.SourcePDF, &r.PageNumber,
			&qtype, &r.Question, &choices, &pdfAns, &webAns,
			&aiAns, &webExpl, &aiExpl, &images, &user); err != nil {
			return exam.Exam{}, err
		}
		r.QuestionType = exam.QuestionType(qtype)
		if err := json.Unmarshal([]byte(choices), &r.Choices); err != nil {
			return exam.Exam{}, fmt.Errorf("question %d choices: %w", r.QuestionID, err)
		}
		if err := json.Unmarshal([]byte(images), &r.Images); err != nil {
			return exam.Exam{}, fmt.Errorf("question %d images: %w", r.QuestionID, err)
		}
		r.PDFAnswer = nullable(pdfAns)
		r.WebRecommendedAnswer = nullable(webAns)
		r.AIRecommendedAnswer = nullable(aiAns)
		r.WebExplanation = nullable(webExpl)
		r.AIExplanation = nullable(aiExpl)
		r.UserAnswer = nullable(user)
		if err := r.Normalize(); err != nil {
			return exam.Exam{}, err
		}
		e.Questions = append(e.Questions, r)
	}
	return e, rows.Err()
}

// Save replaces the questions and stem vectors of an exam in one
// transaction, creating the exam row on first save.
func (s *SQLite) Save(ctx context.Context, e exam.Exam) error {
	if err := checkName(e.Name); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO exams (name) VALUES (?)
			ON CONFLICT(name) DO UPDATE SET updated_at = CURRENT_TIMESTAMP
		`, e.Name); err != nil {
			return fmt.Errorf("upserting exam: %w", err)
		}
		id, err := s.examID(ctx, tx, e.Name)
		if err != nil {
			return err
		}

		if err := deleteQuestions(ctx, tx, id); err != nil {
			return err
		}

		qStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO questions (exam_id, position, question_id, pdf_question_number,
				source_pdf, page_number, question_type, question, choices,
				pdf_answer, web_recommended_answer, ai_recommended_answer,
				web_explanation, ai_explanation, images, user_answer)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer qStmt.Close()

		vStmt, err := tx.PrepareContext(ctx,
			"INSERT INTO vec_stems (question_row, exam_id, embedding) VALUES (?, ?, ?)")
		if err != nil {
			return err
		}
		defer vStmt.Close()

		for i, r := range e.Questions {
			choices, err := json.Marshal(r.Choices)
			if err != nil {
				return fmt.Errorf("question %d choices: %w", r.QuestionID, err)
			}
			imgs := r.Images
			if imgs == nil {
				imgs = []string{}
			}
			images, err := json.Marshal(imgs)
			if err != nil {
				return fmt.Errorf("question %d images: %w", r.QuestionID, err)
			}
			res, err := qStmt.ExecContext(ctx, id, i, r.QuestionID, r.PDFQuestionNumber,
				r.SourcePDF, r.PageNumber, string(r.QuestionType), r.Question, string(choices),
				r.PDFAnswer, r.WebRecommendedAnswer, r.AIRecommendedAnswer,
				r.WebExplanation, r.AIExplanation, string(images), r.UserAnswer)
			if err != nil {
				return fmt.Errorf("inserting question %d: %w", r.QuestionID, err)
			}
			row, err := res.LastInsertId()
			if err != nil {
				return err
			}

			vec := StemVector(r.Question, s.stemDim)
			if isZero(vec) {
				continue
			}
			if _, err := vStmt.ExecContext(ctx, row, id, serializeFloat32(vec)); err != nil {
				return fmt.Errorf("indexing question %d: %w", r.QuestionID, err)
			}
		}
		return nil
	})
}

func deleteQuestions(ctx context.Context, tx *sql.Tx, examID int64) error {
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM vec_stems WHERE question_row IN (
			SELECT id FROM questions WHERE exam_id = ?
		)
	`, examID); err != nil {
		return fmt.Errorf("deleting stem vectors: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM questions WHERE exam_id = ?", examID); err != nil {
		return fmt.Errorf("deleting questions: %w", err)
	}
	return nil
}

func (s *SQLite) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM exams ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func (s *SQLite) Delete(ctx context.Context, name string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		id, err := s.examID(ctx, tx, name)
		if err != nil {
			return err
		}
		if err := deleteQuestions(ctx, tx, id); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, "DELETE FROM exams WHERE id = ?", id)
		return err
	})
}

func (s *SQLite) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.examID(ctx, s.db, name)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// SimilarStems returns up to k stored questions of an exam nearest to
// stem. Scores are cosine similarities derived from the L2 distance of
// unit vectors.
func (s *SQLite) SimilarStems(ctx context.Context, examName, stem string, k int) ([]StemMatch, error) {
	vec := StemVector(stem, s.stemDim)
	if isZero(vec) || k <= 0 {
		return nil, nil
	}
	id, err := s.examID(ctx, s.db, examName)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT q.question_id, q.source_pdf, q.question, v.distance
		FROM vec_stems v
		JOIN questions q ON q.id = v.question_row
		WHERE v.embedding MATCH ? AND k = ? AND v.exam_id = ?
		ORDER BY v.distance
	`, serializeFloat32(vec), k, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StemMatch
	for rows.Next() {
		var m StemMatch
		var distance float64
		if err := rows.Scan(&m.QuestionID, &m.SourcePDF, &m.Question, &distance); err != nil {
			return nil, err
		}
		m.Score = 1 - distance*distance/2
		out = append(out, m)
	}
	return out, rows.Err()
}

// --- helpers ---

func (s *SQLite) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func nullable(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return exam.Str(ns.String)
}
