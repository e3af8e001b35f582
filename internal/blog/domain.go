// Package blog implements posts and comments.
package blog

import (
	"errors"
	"time"

	"github.com/inkpress/inkpress/internal/shared"
)

// Category enumerates post categories.
type Category string

const (
	CategoryTechnology Category = "technology"
	CategoryScience    Category = "science"
	CategoryLifestyle  Category = "lifestyle"
	CategoryTravel     Category = "travel"
	CategoryEducation  Category = "education"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryTechnology, CategoryScience, CategoryLifestyle, CategoryTravel, CategoryEducation:
		return true
	}
	return false
}

var (
	ErrPostNotFound = errors.New("blog: post not found")
	ErrUserNotFound = errors.New("blog: user not found")
	ErrUserInactive = errors.New("blog: user account is inactive")
	// ErrForbidden is returned when the caller neither owns the post nor
	// holds the manager role.
	ErrForbidden = errors.New("blog: not allowed to modify this post")
)

// Post is a full blog post.
type Post struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Title       string    `json:"post_title"`
	Summary     string    `json:"summary"`
	Author      string    `json:"author"`
	Category    Category  `json:"category"`
	ImgURL      string    `json:"img_url"`
	MainContent string    `json:"main_content"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PostSummary is the listing projection of a post.
type PostSummary struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Title     string    `json:"post_title"`
	Summary   string    `json:"summary"`
	Author    string    `json:"author"`
	Category  Category  `json:"category"`
	ImgURL    string    `json:"img_url"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Comment is a reader comment on a post.
type Comment struct {
	ID        int64     `json:"id"`
	PostID    int64     `json:"post_id"`
	UserID    int64     `json:"user_id"`
	Body      string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// NewPost carries the fields of a post to create.
type NewPost struct {
	UserID      int64
	Title       string
	Summary     string
	Author      string
	Category    Category
	ImgURL      string
	MainContent string
}

// PostChanges holds optional post fields; nil fields are left unchanged.
type PostChanges struct {
	Title       *string
	Summary     *string
	Author      *string
	Category    *Category
	ImgURL      *string
	MainContent *string
}

// Empty reports whether no field is set.
func (c PostChanges) Empty() bool {
	return c.Title == nil && c.Summary == nil && c.Author == nil &&
		c.Category == nil && c.ImgURL == nil && c.MainContent == nil
}

// NewComment carries the fields of a comment to create.
type NewComment struct {
	PostID int64
	UserID int64
	Body   string
}

// ListFilter narrows a post listing.
type ListFilter struct {
	// Search matches title, summary, author or category.
	Search string
	shared.PageRequest
}
