package quiz

// Kind discriminates how a question is answered and graded.
type Kind string

const (
	KindSingleChoice Kind = "single_choice"
	KindShortAnswer  Kind = "short_answer"
)

type Question struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Kind Kind   `json:"kind"`

	// Options is the ordered choice list for single_choice questions.
	Options []string `json:"options,omitempty"`
	// CorrectChoice is the 0-based index into Options. Content feeds that
	// ship 1-based positions are converted in ParseQuiz; nothing else in the
	// codebase does index arithmetic.
	CorrectChoice int `json:"correct_choice"`

	// CorrectText is the expected answer for short_answer questions,
	// compared trim+casefold (see grading.EqualText).
	CorrectText string `json:"correct_text,omitempty"`
}

type Quiz struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Subject   string     `json:"subject,omitempty"`
	Grade     string     `json:"grade,omitempty"`
	Questions []Question `json:"questions"`
	CreatedBy string     `json:"created_by,omitempty"`
	CreatedAt int64      `json:"created_at,omitempty"`
}

type QuizSummary struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Subject       string `json:"subject,omitempty"`
	Grade         string `json:"grade,omitempty"`
	QuestionCount int    `json:"question_count"`
	CreatedAt     int64  `json:"created_at"`
}

// Sanitize strips answer keys so a quiz can be served to learners.
func (q Quiz) Sanitize() Quiz {
	out := q
	out.Questions = make([]Question, len(q.Questions))
	copy(out.Questions, q.Questions)
	for i := range out.Questions {
		out.Questions[i].CorrectChoice = 0
		out.Questions[i].CorrectText = ""
	}
	return out
}
