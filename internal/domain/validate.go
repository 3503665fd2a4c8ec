package domain

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks that every field is present and answer is one of A-D.
func (q Question) Validate() error {
	trimmed := Question{
		Question: strings.TrimSpace(q.Question),
		ChoiceA:  strings.TrimSpace(q.ChoiceA),
		ChoiceB:  strings.TrimSpace(q.ChoiceB),
		ChoiceC:  strings.TrimSpace(q.ChoiceC),
		ChoiceD:  strings.TrimSpace(q.ChoiceD),
		Answer:   q.Answer,
	}
	if err := validate.Struct(trimmed); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return Validationf("invalid question: field %s failed %q", verrs[0].Field(), verrs[0].Tag())
		}
		return Validationf("invalid question: %v", err)
	}
	return nil
}
