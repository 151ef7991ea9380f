package contest

import (
	"errors"
	"strings"
	"testing"
	"time"

	"proconnect/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScore(t *testing.T) {
	now := time.Date(2025, 6, 8, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		candidate Candidate
		want      float64
	}{
		{
			name: "engaged project registered a day ago",
			candidate: Candidate{
				Likes:        5,
				Comments:     3,
				TechStack:    []string{"a", "b", "c", "d"},
				Description:  strings.Repeat("x", 250),
				RegisteredAt: now.Add(-24 * time.Hour),
			},
			want: 54,
		},
		{
			name: "short description gets the small bonus",
			candidate: Candidate{
				Description:  "tiny",
				RegisteredAt: now,
			},
			want: 5 + 7,
		},
		{
			name: "description of exactly 200 chars is not detailed",
			candidate: Candidate{
				Description:  strings.Repeat("x", 200),
				RegisteredAt: now.Add(-30 * 24 * time.Hour),
			},
			want: 5,
		},
		{
			name: "partial days are floored",
			candidate: Candidate{
				Likes:        1,
				Description:  "d",
				RegisteredAt: now.Add(-47 * time.Hour),
			},
			want: 3 + 5 + 6,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Score(tc.candidate, now)
			assert.Equal(t, tc.want, got.Total())
		})
	}
}

func TestPick(t *testing.T) {
	now := time.Date(2025, 6, 8, 12, 0, 0, 0, time.UTC)

	t.Run("empty list", func(t *testing.T) {
		_, err := Pick(nil, now)
		require.Error(t, err)
		assert.True(t, errors.Is(err, common.ErrNotFound))
	})

	t.Run("highest score wins with breakdown", func(t *testing.T) {
		candidates := []Candidate{
			{ProjectID: "p1", Likes: 1, Description: "a", RegisteredAt: now},
			{ProjectID: "p2", Likes: 10, Comments: 4, TechStack: []string{"go", "pg", "redis"}, Description: strings.Repeat("y", 300), RegisteredAt: now},
		}
		res, err := Pick(candidates, now)
		require.NoError(t, err)
		assert.Equal(t, "p2", res.Candidate.ProjectID)
		assert.Equal(t, float64(30+20+6+10+7), res.Score)
		assert.Equal(t, float64(30), res.Breakdown.Likes)
		assert.Contains(t, res.Reason, "10 likes")
		assert.Contains(t, res.Reason, "4 comments")
		assert.Contains(t, res.Reason, "diverse tech stack (3 technologies)")
		assert.Contains(t, res.Reason, "detailed description")
	})

	t.Run("ties keep the first seen", func(t *testing.T) {
		candidates := []Candidate{
			{ProjectID: "first", Likes: 2, Description: "a", RegisteredAt: now},
			{ProjectID: "second", Likes: 2, Description: "b", RegisteredAt: now},
		}
		res, err := Pick(candidates, now)
		require.NoError(t, err)
		assert.Equal(t, "first", res.Candidate.ProjectID)
	})

	t.Run("generic reason below thresholds", func(t *testing.T) {
		res, err := Pick([]Candidate{{ProjectID: "p", Likes: 4, RegisteredAt: now}}, now)
		require.NoError(t, err)
		assert.Equal(t, genericReason, res.Reason)
	})
}
