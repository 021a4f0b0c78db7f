package quiz

import (
	"encoding/json"
	"fmt"
)

// Answer is a tagged union: a 0-based option index for single_choice
// questions, free text for short_answer. The tag makes kind mismatches
// detectable at SetAnswer time instead of silently grading wrong.
type Answer struct {
	Kind   Kind   `json:"kind"`
	Choice int    `json:"choice"`
	Text   string `json:"text,omitempty"`
}

func ChoiceAnswer(index int) Answer { return Answer{Kind: KindSingleChoice, Choice: index} }
func TextAnswer(text string) Answer { return Answer{Kind: KindShortAnswer, Text: text} }

// Matches reports whether the answer's tag fits the question's kind.
func (a Answer) Matches(q Question) bool { return a.Kind == q.Kind }

func (a Answer) Validate() error {
	switch a.Kind {
	case KindSingleChoice:
		if a.Choice < 0 {
			return fmt.Errorf("choice index %d out of range", a.Choice)
		}
	case KindShortAnswer:
		// empty text is allowed; it simply grades incorrect
	default:
		return fmt.Errorf("unknown answer kind %q", a.Kind)
	}
	return nil
}

// Ledger maps question IDs to recorded answers. An absent key means
// unanswered.
type Ledger map[string]Answer

func (l Ledger) Clone() Ledger {
	out := make(Ledger, len(l))
	for k, v := range l {
		out[k] = v
	}
	return out
}

// EncodeLedger serializes a ledger for storage in an answers_json column.
func EncodeLedger(l Ledger) (string, error) {
	if l == nil {
		l = Ledger{}
	}
	buf, err := json.Marshal(l)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

// DecodeLedger is lenient: a corrupt column yields an empty ledger rather
// than failing the whole attempt load.
func DecodeLedger(s string) Ledger {
	var l Ledger
	if err := json.Unmarshal([]byte(s), &l); err != nil || l == nil {
		return Ledger{}
	}
	return l
}
