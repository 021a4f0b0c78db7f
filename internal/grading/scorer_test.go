package grading

import (
	"testing"

	"github.com/mtech-kids/explore-quiz/internal/quiz"
)

func singleChoice(id string, correct int, options ...string) quiz.Question {
	return quiz.Question{ID: id, Kind: quiz.KindSingleChoice, Options: options, CorrectChoice: correct}
}

func shortAnswer(id, correct string) quiz.Question {
	return quiz.Question{ID: id, Kind: quiz.KindShortAnswer, CorrectText: correct}
}

func TestEqualText(t *testing.T) {
	cases := []struct {
		got, want string
		equal     bool
	}{
		{"Paris", "Paris", true},
		{"  Paris ", "Paris", true},
		{"paris", "Paris", true},
		{"harare ", "Harare", true},
		{"PARIS", "paris", true},
		{"Pariss", "Paris", false},
		{"", "Paris", false},
		{"   ", "Paris", false},
	}
	for _, c := range cases {
		if got := EqualText(c.got, c.want); got != c.equal {
			t.Errorf("EqualText(%q, %q) = %v, want %v", c.got, c.want, got, c.equal)
		}
	}
}

func TestSingleChoiceExactIndexMatch(t *testing.T) {
	g := NewGrader()
	q := singleChoice("q1", 2, "a", "b", "c", "d")

	cases := []struct {
		choice  int
		correct bool
	}{
		{2, true},
		{0, false},
		{1, false},
		{3, false},
	}
	for _, c := range cases {
		answers := quiz.Ledger{"q1": quiz.ChoiceAnswer(c.choice)}
		if got := g.Correct(q, answers); got != c.correct {
			t.Errorf("choice %d: correct = %v, want %v", c.choice, got, c.correct)
		}
	}
}

func TestShortAnswerNormalizedEquality(t *testing.T) {
	g := NewGrader()
	q := shortAnswer("q1", "Harare")

	if !g.Correct(q, quiz.Ledger{"q1": quiz.TextAnswer("harare ")}) {
		t.Error("trimmed casefolded answer should be correct")
	}
	if g.Correct(q, quiz.Ledger{"q1": quiz.TextAnswer("")}) {
		t.Error("empty answer must grade incorrect")
	}
	if g.Correct(q, quiz.Ledger{}) {
		t.Error("missing answer must grade incorrect")
	}
}

func TestScoreKindMismatchGradesIncorrect(t *testing.T) {
	g := NewGrader()
	qs := []quiz.Question{singleChoice("q1", 0, "x", "y"), shortAnswer("q2", "ok")}
	// A text answer on a choice question and vice versa count as wrong, not
	// as an error.
	answers := quiz.Ledger{
		"q1": quiz.TextAnswer("x"),
		"q2": quiz.ChoiceAnswer(0),
	}
	if got := g.Score(qs, answers); got != 0 {
		t.Errorf("score = %d, want 0", got)
	}
}

func TestScoreThreeQuestionScenario(t *testing.T) {
	// Correct choices at indexes {0,1,0}; learner answers {0,1,1}.
	qs := []quiz.Question{
		singleChoice("q1", 0, "a", "b"),
		singleChoice("q2", 1, "a", "b"),
		singleChoice("q3", 0, "a", "b"),
	}
	answers := quiz.Ledger{
		"q1": quiz.ChoiceAnswer(0),
		"q2": quiz.ChoiceAnswer(1),
		"q3": quiz.ChoiceAnswer(1),
	}
	g := NewGrader()
	if got := g.Score(qs, answers); got != 2 {
		t.Fatalf("score = %d, want 2", got)
	}
}

func TestScoreUnansweredCountsIncorrect(t *testing.T) {
	qs := []quiz.Question{
		singleChoice("q1", 0, "a", "b"),
		shortAnswer("q2", "moon"),
	}
	g := NewGrader()
	if got := g.Score(qs, quiz.Ledger{"q1": quiz.ChoiceAnswer(0)}); got != 1 {
		t.Fatalf("score = %d, want 1", got)
	}
	if got := g.Score(qs, quiz.Ledger{}); got != 0 {
		t.Fatalf("score = %d, want 0", got)
	}
}
