package exam

import "fmt"

// Kind classifies a recoverable parsing or merging condition.
type Kind string

const (
	// NoQuestionsDetected: a document yielded zero anchors.
	NoQuestionsDetected Kind = "NoQuestionsDetected"
	// AmbiguousChoiceLabel: a repeated or malformed choice label.
	AmbiguousChoiceLabel Kind = "AmbiguousChoiceLabel"
	// MissingAnswerSection: informational, one answer source is absent.
	MissingAnswerSection Kind = "MissingAnswerSection"
	// NoAuthoritativeAnswer: all three answer sources are absent.
	NoAuthoritativeAnswer Kind = "NoAuthoritativeAnswer"
	// AnswerChoiceMismatch: an answer references a letter that is not a choice.
	AnswerChoiceMismatch Kind = "AnswerChoiceMismatch"
	// ImageAssociationConflict: several candidate questions and no position info.
	ImageAssociationConflict Kind = "ImageAssociationConflict"
	// ImageWriteFailed: the image could not be written and is not referenced.
	ImageWriteFailed Kind = "ImageWriteFailed"
	// ImageNameCollision: an image file name is already referenced by another
	// question, so the later write replaced the earlier file.
	ImageNameCollision Kind = "ImageNameCollision"
	// DuplicateStemOnAppend: the stem matches an earlier record.
	DuplicateStemOnAppend Kind = "DuplicateStemOnAppend"
	// DecoderFailure: the page source failed for the whole document.
	DecoderFailure Kind = "DecoderFailure"
)

// Warning is a flag raised for manual review. QuestionID is 0 when the
// condition is not tied to a single question.
type Warning struct {
	Kind       Kind   `json:"kind"`
	Document   string `json:"document"`
	QuestionID int    `json:"question_id,omitempty"`
	Page       int    `json:"page,omitempty"`
	Message    string `json:"message"`
}

func (w Warning) String() string {
	if w.QuestionID > 0 {
		return fmt.Sprintf("%s: %s question %d: %s", w.Kind, w.Document, w.QuestionID, w.Message)
	}
	return fmt.Sprintf("%s: %s: %s", w.Kind, w.Document, w.Message)
}
