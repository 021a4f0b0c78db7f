// Package review builds the per-question outcome view shown after a
// submitted attempt. Correctness here comes from the same grader the scorer
// used, so the highlighting can never disagree with the recorded score.
package review

import (
	"github.com/mtech-kids/explore-quiz/internal/grading"
	"github.com/mtech-kids/explore-quiz/internal/quiz"
)

// Outcome is one question's result line.
type Outcome struct {
	QuestionID string    `json:"question_id"`
	Text       string    `json:"text"`
	Kind       quiz.Kind `json:"kind"`
	Answered   bool      `json:"answered"`
	Correct    bool      `json:"correct"`

	// single_choice
	Options       []string `json:"options,omitempty"`
	CorrectChoice int      `json:"correct_choice,omitempty"`
	ChosenChoice  int      `json:"chosen_choice"` // -1 when unanswered

	// short_answer
	ExpectedText string `json:"expected_text,omitempty"`
	GivenText    string `json:"given_text,omitempty"`
}

// Summary is the full post-attempt view: fresh score plus historical best.
type Summary struct {
	QuizID         string    `json:"quiz_id"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"total_questions"`
	Percentage     int       `json:"percentage"`
	BestScore      int       `json:"best_score"`
	Outcomes       []Outcome `json:"outcomes"`
}

// Build renders outcomes for a finished attempt. bestScore is the learner's
// historical best percentage including this attempt.
func Build(g *grading.Grader, questions []quiz.Question, answers quiz.Ledger, quizID string, percentage, bestScore int) Summary {
	sum := Summary{
		QuizID:         quizID,
		TotalQuestions: len(questions),
		Percentage:     percentage,
		BestScore:      bestScore,
		Outcomes:       make([]Outcome, 0, len(questions)),
	}
	for _, q := range questions {
		o := Outcome{
			QuestionID:   q.ID,
			Text:         q.Text,
			Kind:         q.Kind,
			ChosenChoice: -1,
		}
		a, answered := answers[q.ID]
		o.Answered = answered
		o.Correct = g.Correct(q, answers)
		switch q.Kind {
		case quiz.KindSingleChoice:
			o.Options = q.Options
			o.CorrectChoice = q.CorrectChoice
			if answered && a.Kind == quiz.KindSingleChoice {
				o.ChosenChoice = a.Choice
			}
		case quiz.KindShortAnswer:
			o.ExpectedText = q.CorrectText
			if answered {
				o.GivenText = a.Text
			}
		}
		if o.Correct {
			sum.Score++
		}
		sum.Outcomes = append(sum.Outcomes, o)
	}
	return sum
}
