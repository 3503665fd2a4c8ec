package app

import "quizzly-service/internal/domain"

// Evaluate grades answers positionally against questions. Callers guarantee
// equal lengths; extra answers beyond the question bank are ignored.
func Evaluate(questions []domain.Question, answers []string) ([]domain.EvaluatedAnswer, int) {
	evaluated := make([]domain.EvaluatedAnswer, 0, len(answers))
	score := 0
	for i, ans := range answers {
		if i >= len(questions) {
			break
		}
		correct := questions[i].Answer == ans
		if correct {
			score++
		}
		evaluated = append(evaluated, domain.EvaluatedAnswer{
			QuestionIndex: i,
			Answer:        ans,
			IsCorrect:     correct,
		})
	}
	return evaluated, score
}

// Breakdown splits a response into right and wrong questions for the end-of-quiz summary.
func Breakdown(questions []domain.Question, resp domain.Response) (right, wrong []domain.QuestionOutcome) {
	right = []domain.QuestionOutcome{}
	wrong = []domain.QuestionOutcome{}
	for _, ans := range resp.Answers {
		if ans.QuestionIndex < 0 || ans.QuestionIndex >= len(questions) {
			continue
		}
		q := questions[ans.QuestionIndex]
		outcome := domain.QuestionOutcome{
			QuestionIndex: ans.QuestionIndex,
			Question:      q.Question,
			YourAnswer:    ans.Answer,
			CorrectAnswer: q.Answer,
		}
		if ans.IsCorrect {
			right = append(right, outcome)
		} else {
			wrong = append(wrong, outcome)
		}
	}
	return right, wrong
}
