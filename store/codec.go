package store

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/brunobiangulo/examparse/exam"
)

const maxLine = 16 << 20

// EncodeRecords writes one JSON object per line.
func EncodeRecords(w io.Writer, recs []exam.Record) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, r := range recs {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encoding question %d: %w", r.QuestionID, err)
		}
	}
	return nil
}

// DecodeRecords reads records written by EncodeRecords or by older
// writers. Blank lines are skipped and every record is normalized.
func DecodeRecords(r io.Reader) ([]exam.Record, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLine)

	recs := []exam.Record{}
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		var rec exam.Record
		if err := json.Unmarshal(b, &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if err := rec.Normalize(); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		recs = append(recs, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading records: %w", err)
	}
	return recs, nil
}
