package generator

import (
	"context"
	"fmt"

	"quizzly-service/internal/domain"
)

// Sample cycles a built-in arithmetic bank; used when no model API key is
// configured so the service still runs locally.
type Sample struct{}

func NewSample() Sample { return Sample{} }

func (Sample) Generate(_ context.Context, subject, topic string, count, _ int) ([]domain.Question, error) {
	if count <= 0 {
		return nil, domain.ErrGenerationFailed
	}
	letters := []string{domain.ChoiceA, domain.ChoiceB, domain.ChoiceC, domain.ChoiceD}
	out := make([]domain.Question, 0, count)
	for i := 0; i < count; i++ {
		a, b := i+1, i+2
		sum := a + b
		choices := [4]string{}
		correct := i % 4
		for j := range choices {
			choices[j] = fmt.Sprint(sum + j - correct)
		}
		out = append(out, domain.Question{
			Question: fmt.Sprintf("[%s / %s] What is %d + %d?", subject, topic, a, b),
			ChoiceA:  choices[0],
			ChoiceB:  choices[1],
			ChoiceC:  choices[2],
			ChoiceD:  choices[3],
			Answer:   letters[correct],
		})
	}
	return out, nil
}
