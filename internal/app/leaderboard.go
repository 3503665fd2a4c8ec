package app

import (
	"fmt"
	"math"
	"sort"
	"time"

	"quizzly-service/internal/domain"
)

// notAvailable is shown when neither exec_time nor start/end are known.
const notAvailable = "N/A"

// RankLeaderboard projects the ledger of quiz into ranked rows: score
// descending, then time taken ascending, then name. It never mutates quiz;
// now stands in for attemptedAt while the quiz is still running.
func RankLeaderboard(quiz domain.Quiz, now time.Time) []domain.LeaderboardEntry {
	total := len(quiz.Questions)
	elapsed, known := QuizElapsed(quiz)
	timeTaken := notAvailable
	if known {
		timeTaken = FormatTimeTaken(elapsed)
	}

	attemptedAt := now
	if quiz.EndTime != nil {
		attemptedAt = *quiz.EndTime
	}

	type row struct {
		entry   domain.LeaderboardEntry
		elapsed time.Duration
	}
	rows := make([]row, 0, len(quiz.UserResponses))
	for _, resp := range quiz.UserResponses {
		correct := resp.CorrectCount()
		rows = append(rows, row{
			entry: domain.LeaderboardEntry{
				Name:             resp.Name,
				Score:            resp.Score,
				Percentage:       Percentage(resp.Score, total),
				CorrectAnswers:   correct,
				IncorrectAnswers: len(resp.Answers) - correct,
				TimeTaken:        timeTaken,
				AttemptedAt:      attemptedAt,
				Answers:          append([]domain.EvaluatedAnswer(nil), resp.Answers...),
			},
			elapsed: elapsed,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.entry.Score != b.entry.Score {
			return a.entry.Score > b.entry.Score
		}
		if a.elapsed != b.elapsed {
			return a.elapsed < b.elapsed
		}
		return a.entry.Name < b.entry.Name
	})

	entries := make([]domain.LeaderboardEntry, len(rows))
	for i, r := range rows {
		entries[i] = r.entry
	}
	return entries
}

// QuizElapsed derives the run duration from exec_time, else end-start.
func QuizElapsed(quiz domain.Quiz) (time.Duration, bool) {
	if quiz.ExecTime != nil {
		return time.Duration(*quiz.ExecTime * float64(time.Second)), true
	}
	if quiz.StartTime != nil && quiz.EndTime != nil {
		return quiz.EndTime.Sub(*quiz.StartTime), true
	}
	return 0, false
}

// Percentage is round(score/total*100) with ties to even, or 0 for an empty
// question bank.
func Percentage(score, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.RoundToEven(float64(score) / float64(total) * 100))
}

// FormatTimeTaken renders d as "<minutes>m <seconds>s".
func FormatTimeTaken(d time.Duration) string {
	secs := int(d / time.Second)
	return fmt.Sprintf("%dm %ds", secs/60, secs%60)
}
