package store

import "fmt"

// schemaSQL returns the DDL for all tables. stemDim controls the vec0
// virtual table dimension.
func schemaSQL(stemDim int) string {
	return fmt.Sprintf(`
-- One row per exam
CREATE TABLE IF NOT EXISTS exams (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Question records in exam order
CREATE TABLE IF NOT EXISTS questions (
    id INTEGER PRIMARY KEY,
    exam_id INTEGER NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    question_id INTEGER NOT NULL,
    pdf_question_number TEXT NOT NULL DEFAULT '',
    source_pdf TEXT NOT NULL,
    page_number INTEGER NOT NULL,
    question_type TEXT NOT NULL,
    question TEXT NOT NULL,
    choices JSON NOT NULL,
    pdf_answer TEXT,
    web_recommended_answer TEXT,
    ai_recommended_answer TEXT,
    web_explanation TEXT,
    ai_explanation TEXT,
    images JSON NOT NULL,
    user_answer TEXT,
    UNIQUE(exam_id, question_id)
);

-- Hashed stem vectors via sqlite-vec, partitioned per exam
CREATE VIRTUAL TABLE IF NOT EXISTS vec_stems USING vec0(
    question_row INTEGER PRIMARY KEY,
    exam_id INTEGER partition key,
    embedding float[%d]
);

-- Indexes
CREATE INDEX IF NOT EXISTS idx_questions_exam ON questions(exam_id, position);
`, stemDim)
}
