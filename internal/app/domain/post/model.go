// Package post defines content items and their engagement counters.
package post

import "time"

// Supported media types.
const (
	MediaImage = "image"
	MediaVideo = "video"
)

// Post is a content item. The counters mirror the size of the corresponding
// interaction sets; the earnings fields accumulate the per-engagement rates
// credited to this post.
type Post struct {
	ID            string    `json:"id"`
	AuthorID      string    `json:"author_id"`
	Caption       string    `json:"caption"`
	MediaURL      string    `json:"media_url"`
	MediaType     string    `json:"media_type"`
	ViewsCount    int64     `json:"views_count"`
	LikesCount    int64     `json:"likes_count"`
	CommentsCount int64     `json:"comments_count"`
	ViewEarnings  float64   `json:"view_earnings"`
	LikeEarnings  float64   `json:"like_earnings"`
	TotalEarnings float64   `json:"total_earnings"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Interaction records one user's membership in a post's view or like set.
type Interaction struct {
	PostID    string    `json:"post_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
