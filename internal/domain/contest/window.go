package contest

import (
	"time"

	"proconnect/internal/domain/model"
)

// Week identifies one contest cycle by ISO-8601 week and ISO year.
type Week struct {
	Year   int `json:"year"`
	Number int `json:"week_number"`
}

// WeekOf returns the ISO week containing t. Saturday registration and Sunday
// evaluation always share a week.
func WeekOf(t time.Time) Week {
	year, week := t.ISOWeek()
	return Week{Year: year, Number: week}
}

// PhaseAt returns the calendar phase for t: Saturday registers, Sunday
// evaluates, Monday to Friday displays the winner.
func PhaseAt(t time.Time) model.ContestPhase {
	switch t.Weekday() {
	case time.Saturday:
		return model.PhaseRegistration
	case time.Sunday:
		return model.PhaseEvaluation
	default:
		return model.PhaseDisplay
	}
}

// NextSundayMidnight is the start of the next Sunday strictly after the day
// of t. On a Sunday it is seven days ahead.
func NextSundayMidnight(t time.Time) time.Time {
	days := (7 - int(t.Weekday())) % 7
	if days == 0 {
		days = 7
	}
	y, m, d := t.Date()
	return time.Date(y, m, d+days, 0, 0, 0, 0, t.Location())
}

// Window describes the current contest state as seen by clients.
type Window struct {
	Phase                model.ContestPhase `json:"phase"`
	WeekNumber           int                `json:"week_number"`
	Year                 int                `json:"year"`
	Manual               bool               `json:"manual"`
	IsRegistrationOpen   bool               `json:"is_registration_open"`
	IsEvaluationOpen     bool               `json:"is_evaluation_open"`
	NextPhaseStartsAt    time.Time          `json:"next_phase_starts_at"`
	CurrentWinnerExpires *time.Time         `json:"current_winner_expires,omitempty"`
}

// NewWindow builds a Window for the given persisted phase at time t.
func NewWindow(t time.Time, phase model.ContestPhase, manual bool) Window {
	w := WeekOf(t)
	return Window{
		Phase:              phase,
		WeekNumber:         w.Number,
		Year:               w.Year,
		Manual:             manual,
		IsRegistrationOpen: phase == model.PhaseRegistration,
		IsEvaluationOpen:   phase == model.PhaseEvaluation,
		NextPhaseStartsAt:  nextPhaseStart(t),
	}
}

func nextPhaseStart(t time.Time) time.Time {
	y, m, d := t.Date()
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
	default:
		return time.Date(y, m, d+int(time.Saturday-t.Weekday()), 0, 0, 0, 0, t.Location())
	}
}
