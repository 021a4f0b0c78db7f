// Package grading scores quiz attempts. One strategy per question kind,
// routed by a Grader, the way larger assessment engines organize autograding.
package grading

import (
	"strings"

	"github.com/mtech-kids/explore-quiz/internal/quiz"
)

// EqualText is the short-answer comparator: whitespace-trimmed,
// case-insensitive. Scorer and result presenter both use this function, so
// highlighting can never disagree with the score.
func EqualText(got, want string) bool {
	return strings.EqualFold(strings.TrimSpace(got), strings.TrimSpace(want))
}

// Strategy decides whether one recorded answer is correct.
type Strategy interface {
	Correct(q quiz.Question, a quiz.Answer) bool
}

type singleChoiceStrategy struct{}

// Correct: exact 0-based index match. The boundary codec already converted
// any 1-based feed positions, so no arithmetic happens here.
func (singleChoiceStrategy) Correct(q quiz.Question, a quiz.Answer) bool {
	return a.Kind == quiz.KindSingleChoice && a.Choice == q.CorrectChoice
}

type shortAnswerStrategy struct{}

func (shortAnswerStrategy) Correct(q quiz.Question, a quiz.Answer) bool {
	if a.Kind != quiz.KindShortAnswer || strings.TrimSpace(a.Text) == "" {
		return false
	}
	return EqualText(a.Text, q.CorrectText)
}

// Grader routes questions to per-kind strategies.
type Grader struct {
	strategies map[quiz.Kind]Strategy
}

type Option func(*Grader)

// WithStrategy overrides or adds a kind's strategy.
func WithStrategy(k quiz.Kind, s Strategy) Option {
	return func(g *Grader) { g.strategies[k] = s }
}

func NewGrader(opts ...Option) *Grader {
	g := &Grader{strategies: map[quiz.Kind]Strategy{
		quiz.KindSingleChoice: singleChoiceStrategy{},
		quiz.KindShortAnswer:  shortAnswerStrategy{},
	}}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Correct grades a single question against the ledger. Missing answers and
// unknown kinds grade incorrect; grading never errors.
func (g *Grader) Correct(q quiz.Question, answers quiz.Ledger) bool {
	a, ok := answers[q.ID]
	if !ok {
		return false
	}
	s, ok := g.strategies[q.Kind]
	if !ok {
		return false
	}
	return s.Correct(q, a)
}

// Score counts correct answers. Deterministic, no side effects; the result
// is in [0, len(questions)] by construction.
func (g *Grader) Score(questions []quiz.Question, answers quiz.Ledger) int {
	score := 0
	for _, q := range questions {
		if g.Correct(q, answers) {
			score++
		}
	}
	return score
}
