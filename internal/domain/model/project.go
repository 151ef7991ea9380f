package model

import (
	"time"
)

type ProjectVisibility string

const (
	VisibilityPublic  ProjectVisibility = "public"
	VisibilityFriends ProjectVisibility = "friends"
)

type Project struct {
	ID          string            `json:"id"`
	OwnerID     string            `json:"owner_id"`
	Title       string            `json:"title"`
	Slug        string            `json:"slug"`
	Description string            `json:"description"`
	TechStack   []string          `json:"tech_stack"`
	GithubURL   *string           `json:"github_url,omitempty"`
	LiveURL     *string           `json:"live_url,omitempty"`
	ImageURL    *string           `json:"image_url,omitempty"`
	Visibility  ProjectVisibility `json:"visibility"`
	Challenges  Challenges        `json:"challenges"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`

	// Populated on reads
	LikesCount    int          `json:"likes_count"`
	CommentsCount int          `json:"comments_count"`
	LikedByMe     bool         `json:"liked_by_me"`
	Owner         *UserSummary `json:"owner,omitempty"`
}

// Challenges holds the owner's free-text reflections on the project.
type Challenges struct {
	Problem    string `json:"problem"`
	Approach   string `json:"approach"`
	Learnings  string `json:"learnings"`
	FutureWork string `json:"future_work"`
}

type Comment struct {
	ID        string       `json:"id"`
	ProjectID string       `json:"project_id"`
	UserID    string       `json:"user_id"`
	ParentID  *string      `json:"parent_id,omitempty"`
	Text      string       `json:"text"`
	CreatedAt time.Time    `json:"created_at"`
	Author    *UserSummary `json:"author,omitempty"`
	Replies   []Comment    `json:"replies,omitempty"`
}

// ProjectEngagement is the snapshot the scoring function works on.
type ProjectEngagement struct {
	ProjectID     string
	LikesCount    int
	CommentsCount int
}
