package contest

import (
	"fmt"
	"math"
	"strings"
	"time"

	"proconnect/internal/common"
)

const (
	likeWeight         = 3
	commentWeight      = 5
	techWeight         = 2
	longDescriptionLen = 200
	longDescBonus      = 10
	shortDescBonus     = 5
	recencyWindowDays  = 7

	likesReasonMin    = 5
	commentsReasonMin = 3
	techReasonMin     = 3

	genericReason = "Selected for overall quality and community engagement"
)

// Candidate is the scoring input for one registered project.
type Candidate struct {
	ContestantID string    `json:"contestant_id"`
	ProjectID    string    `json:"project_id"`
	Title        string    `json:"title"`
	OwnerID      string    `json:"owner_id"`
	Likes        int       `json:"likes"`
	Comments     int       `json:"comments"`
	TechStack    []string  `json:"tech_stack"`
	Description  string    `json:"description"`
	RegisteredAt time.Time `json:"registered_at"`
}

type Breakdown struct {
	Likes       float64 `json:"likes"`
	Comments    float64 `json:"comments"`
	TechStack   float64 `json:"tech_stack"`
	Description float64 `json:"description"`
	Recency     float64 `json:"recency"`
}

func (b Breakdown) Total() float64 {
	return b.Likes + b.Comments + b.TechStack + b.Description + b.Recency
}

type Result struct {
	Candidate Candidate `json:"candidate"`
	Score     float64   `json:"score"`
	Breakdown Breakdown `json:"breakdown"`
	Reason    string    `json:"reason"`
}

// Score computes the breakdown for c as of now.
func Score(c Candidate, now time.Time) Breakdown {
	b := Breakdown{
		Likes:     float64(c.Likes * likeWeight),
		Comments:  float64(c.Comments * commentWeight),
		TechStack: float64(len(c.TechStack) * techWeight),
	}
	if len(c.Description) > longDescriptionLen {
		b.Description = longDescBonus
	} else {
		b.Description = shortDescBonus
	}
	days := math.Floor(now.Sub(c.RegisteredAt).Hours() / 24)
	b.Recency = math.Max(0, recencyWindowDays-days)
	return b
}

// Reason lists the components of c that crossed their thresholds.
func Reason(c Candidate) string {
	var parts []string
	if c.Likes >= likesReasonMin {
		parts = append(parts, fmt.Sprintf("%d likes", c.Likes))
	}
	if c.Comments >= commentsReasonMin {
		parts = append(parts, fmt.Sprintf("%d comments", c.Comments))
	}
	if len(c.TechStack) >= techReasonMin {
		parts = append(parts, fmt.Sprintf("diverse tech stack (%d technologies)", len(c.TechStack)))
	}
	if len(c.Description) > longDescriptionLen {
		parts = append(parts, "detailed description")
	}
	if len(parts) == 0 {
		return genericReason
	}
	return "Strong engagement: " + strings.Join(parts, ", ")
}

// Pick returns the highest scoring candidate. Ties keep the first seen.
func Pick(candidates []Candidate, now time.Time) (*Result, error) {
	if len(candidates) == 0 {
		return nil, common.NewCodedError(common.ErrNotFound, "no_contestants", "no contestants")
	}
	var best *Result
	for _, c := range candidates {
		b := Score(c, now)
		if best == nil || b.Total() > best.Score {
			best = &Result{Candidate: c, Score: b.Total(), Breakdown: b}
		}
	}
	best.Reason = Reason(best.Candidate)
	return best, nil
}
