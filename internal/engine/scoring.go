package engine

import "evaluation-service/internal/domain"

// Score grades answers against the questions' correct options.
// The 20-point score is rounded half up; unanswered questions count as incorrect.
func Score(questions []domain.Question, answers domain.AnswerMap) domain.EvaluationResult {
	correct := 0
	for i, q := range questions {
		selected, ok := answers[i]
		if ok && selected == q.CorrectIndex() {
			correct++
		}
	}
	score := ScaledScore(correct, len(questions))
	return domain.EvaluationResult{
		Score:          score,
		Passed:         Passed(score),
		CorrectCount:   correct,
		TotalQuestions: len(questions),
		Answers:        answers.Clone(),
	}
}

// ScaledScore returns round(correct / total * MaxScore) without floating point.
// A zero total scores zero; sessions reject empty banks before this is reached.
func ScaledScore(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return (2*correct*domain.MaxScore + total) / (2 * total)
}

func Passed(score int) bool {
	return score >= domain.PassingScore
}

// Tier is a cosmetic urgency level for the remaining time.
type Tier string

const (
	TierNominal  Tier = "nominal"
	TierWarning  Tier = "warning"
	TierCritical Tier = "critical"
)

// TierFor maps the remaining fraction of the time limit to a Tier:
// above half is nominal, a quarter to half is warning, below a quarter is critical.
func TierFor(remaining, limit int) Tier {
	if limit <= 0 {
		return TierCritical
	}
	switch {
	case 2*remaining > limit:
		return TierNominal
	case 4*remaining >= limit:
		return TierWarning
	default:
		return TierCritical
	}
}
