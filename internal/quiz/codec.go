package quiz

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
)

// quizPayload is the authoring wire shape. Content feeds ship the correct
// option as a 1-based position; this file is the single place where that is
// converted to the 0-based CorrectChoice used everywhere else.
type quizPayload struct {
	ID        string            `json:"id" validate:"required"`
	Title     string            `json:"title" validate:"required"`
	Subject   string            `json:"subject"`
	Grade     string            `json:"grade"`
	Questions []questionPayload `json:"questions" validate:"required,min=1,dive"`
}

type questionPayload struct {
	ID              string   `json:"id" validate:"required"`
	Text            string   `json:"text" validate:"required"`
	Kind            Kind     `json:"kind" validate:"required,oneof=single_choice short_answer"`
	Options         []string `json:"options"`
	CorrectPosition int      `json:"correct_position"` // 1-based in the feed
	CorrectText     string   `json:"correct_text"`
}

var validate = validator.New()

// ParseQuiz decodes, validates and normalizes an authored quiz. Invariants
// enforced here so the rest of the system can assume them:
//   - single_choice: at least two options, 1 <= correct_position <= len(options)
//   - short_answer: non-empty correct_text, no options
//   - question IDs unique within the quiz
func ParseQuiz(r io.Reader) (Quiz, error) {
	var p quizPayload
	dec := json.NewDecoder(r)
	if err := dec.Decode(&p); err != nil {
		return Quiz{}, fmt.Errorf("decode quiz: %w", err)
	}
	if err := validate.Struct(p); err != nil {
		return Quiz{}, fmt.Errorf("invalid quiz: %w", err)
	}

	q := Quiz{
		ID:        p.ID,
		Title:     p.Title,
		Subject:   p.Subject,
		Grade:     p.Grade,
		Questions: make([]Question, 0, len(p.Questions)),
	}
	seen := make(map[string]struct{}, len(p.Questions))
	for _, qp := range p.Questions {
		if _, dup := seen[qp.ID]; dup {
			return Quiz{}, fmt.Errorf("duplicate question id %q", qp.ID)
		}
		seen[qp.ID] = struct{}{}

		mq := Question{ID: qp.ID, Text: qp.Text, Kind: qp.Kind}
		switch qp.Kind {
		case KindSingleChoice:
			if len(qp.Options) < 2 {
				return Quiz{}, fmt.Errorf("question %q: single_choice needs at least two options", qp.ID)
			}
			if qp.CorrectPosition < 1 || qp.CorrectPosition > len(qp.Options) {
				return Quiz{}, fmt.Errorf("question %q: correct_position %d out of range 1..%d",
					qp.ID, qp.CorrectPosition, len(qp.Options))
			}
			mq.Options = qp.Options
			mq.CorrectChoice = qp.CorrectPosition - 1 // feed is 1-based
		case KindShortAnswer:
			if strings.TrimSpace(qp.CorrectText) == "" {
				return Quiz{}, fmt.Errorf("question %q: short_answer needs correct_text", qp.ID)
			}
			if len(qp.Options) != 0 {
				return Quiz{}, fmt.Errorf("question %q: short_answer takes no options", qp.ID)
			}
			mq.CorrectText = qp.CorrectText
		}
		q.Questions = append(q.Questions, mq)
	}
	return q, nil
}
