package engine

import "evaluation-service/internal/domain"

// Mark annotates an option in review mode.
type Mark string

const (
	MarkNone Mark = "none"
	// MarkCorrect flags the correct option whether or not it was picked.
	MarkCorrect Mark = "correct"
	// MarkIncorrect flags the participant's wrong pick.
	MarkIncorrect Mark = "incorrect"
)

type ReviewOption struct {
	Text     string `json:"text"`
	Mark     Mark   `json:"mark"`
	Selected bool   `json:"selected"`
}

// ReviewItem is one question of the review listing. Selected is -1 when unanswered.
type ReviewItem struct {
	Index    int            `json:"index"`
	Prompt   string         `json:"prompt"`
	Options  []ReviewOption `json:"options"`
	Selected int            `json:"selected"`
	Answered bool           `json:"answered"`
	Correct  bool           `json:"correct"`
}

func buildReview(questions []domain.Question, answers domain.AnswerMap) []ReviewItem {
	items := make([]ReviewItem, len(questions))
	for i, q := range questions {
		correctIndex := q.CorrectIndex()
		selected, answered := answers[i]
		if !answered {
			selected = -1
		}

		options := make([]ReviewOption, len(q.Options))
		for j, opt := range q.Options {
			mark := MarkNone
			switch {
			case j == correctIndex:
				mark = MarkCorrect
			case j == selected:
				mark = MarkIncorrect
			}
			options[j] = ReviewOption{Text: opt.Text, Mark: mark, Selected: j == selected}
		}

		items[i] = ReviewItem{
			Index:    i,
			Prompt:   q.Prompt,
			Options:  options,
			Selected: selected,
			Answered: answered,
			Correct:  answered && selected == correctIndex,
		}
	}
	return items
}
