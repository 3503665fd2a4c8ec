package http

import (
	"time"

	"quizzly-service/internal/domain"
)

// quizView is the owner's view: the whole document plus the legacy flags.
type quizView struct {
	domain.Quiz
	IsStarted  bool `json:"is_started"`
	IsExecuted bool `json:"is_executed"`
}

func ownerView(q domain.Quiz) quizView {
	return quizView{Quiz: q, IsStarted: q.IsStarted(), IsExecuted: q.IsExecuted()}
}

func ownerViews(quizzes []domain.Quiz) []quizView {
	out := make([]quizView, 0, len(quizzes))
	for _, q := range quizzes {
		out = append(out, ownerView(q))
	}
	return out
}

type participantQuestion struct {
	Question string `json:"question"`
	ChoiceA  string `json:"choice_A"`
	ChoiceB  string `json:"choice_B"`
	ChoiceC  string `json:"choice_C"`
	ChoiceD  string `json:"choice_D"`
}

// participantQuizView hides the password, the answer key and the ledger.
type participantQuizView struct {
	ID              string                `json:"id"`
	Name            string                `json:"name"`
	Subject         string                `json:"subject"`
	Topic           string                `json:"topic"`
	DifficultyLevel int                   `json:"difficulty_level"`
	NumQuestions    int                   `json:"num_questions"`
	Questions       []participantQuestion `json:"questions"`
	TriggerLink     string                `json:"trigger_link"`
	State           domain.State          `json:"state"`
	IsStarted       bool                  `json:"is_started"`
	IsExecuted      bool                  `json:"is_executed"`
	StartTime       *time.Time            `json:"start_time"`
	EndTime         *time.Time            `json:"end_time"`
	ExecTime        *float64              `json:"exec_time"`
}

func participantView(q domain.Quiz) participantQuizView {
	questions := make([]participantQuestion, 0, len(q.Questions))
	for _, item := range q.Questions {
		questions = append(questions, participantQuestion{
			Question: item.Question,
			ChoiceA:  item.ChoiceA,
			ChoiceB:  item.ChoiceB,
			ChoiceC:  item.ChoiceC,
			ChoiceD:  item.ChoiceD,
		})
	}
	return participantQuizView{
		ID:              q.ID,
		Name:            q.Name,
		Subject:         q.Subject,
		Topic:           q.Topic,
		DifficultyLevel: q.DifficultyLevel,
		NumQuestions:    q.NumQuestions,
		Questions:       questions,
		TriggerLink:     q.TriggerLink,
		State:           q.State,
		IsStarted:       q.IsStarted(),
		IsExecuted:      q.IsExecuted(),
		StartTime:       q.StartTime,
		EndTime:         q.EndTime,
		ExecTime:        q.ExecTime,
	}
}
