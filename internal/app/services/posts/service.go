// Package posts manages content items: creation, listing, and soft deletion.
package posts

import (
	"context"
	"fmt"
	"strings"

	"github.com/dedpost/platform/internal/app/domain/post"
	"github.com/dedpost/platform/internal/app/storage"
	"github.com/dedpost/platform/pkg/logger"
)

const maxCaptionLength = 2000

// Service provides post operations.
type Service struct {
	posts storage.PostStore
	users storage.UserStore
	log   *logger.Logger
}

// NewService creates a posts service.
func NewService(posts storage.PostStore, users storage.UserStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("posts")
	}
	return &Service{posts: posts, users: users, log: log}
}

// Create publishes a new post for the given author.
func (s *Service) Create(ctx context.Context, authorID, caption, mediaURL, mediaType string) (post.Post, error) {
	caption = strings.TrimSpace(caption)
	if caption == "" {
		return post.Post{}, fmt.Errorf("caption must not be empty: %w", storage.ErrInvalidInput)
	}
	if len(caption) > maxCaptionLength {
		return post.Post{}, fmt.Errorf("caption exceeds %d characters: %w", maxCaptionLength, storage.ErrInvalidInput)
	}
	if mediaURL == "" {
		return post.Post{}, fmt.Errorf("media URL must not be empty: %w", storage.ErrInvalidInput)
	}
	if mediaType != post.MediaImage && mediaType != post.MediaVideo {
		return post.Post{}, fmt.Errorf("unsupported media type %q: %w", mediaType, storage.ErrInvalidInput)
	}

	author, err := s.users.GetUser(ctx, authorID)
	if err != nil {
		return post.Post{}, fmt.Errorf("author %s: %w", authorID, err)
	}
	if !author.Active {
		return post.Post{}, fmt.Errorf("author %s: %w", authorID, storage.ErrNotFound)
	}

	created, err := s.posts.CreatePost(ctx, post.Post{
		AuthorID:  authorID,
		Caption:   caption,
		MediaURL:  mediaURL,
		MediaType: mediaType,
	})
	if err != nil {
		return post.Post{}, fmt.Errorf("create post: %w", err)
	}

	if err := s.users.AdjustPostsCount(ctx, authorID, 1); err != nil {
		s.log.WithError(err).WithField("user_id", authorID).Warn("failed to bump author post count")
	}

	s.log.WithField("post_id", created.ID).WithField("author_id", authorID).Info("post created")
	return created, nil
}

// Get returns one post.
func (s *Service) Get(ctx context.Context, id string) (post.Post, error) {
	return s.posts.GetPost(ctx, id)
}

// Feed returns active posts, newest first.
func (s *Service) Feed(ctx context.Context, offset, limit int) ([]post.Post, int64, error) {
	return s.posts.ListFeed(ctx, offset, limit)
}

// ByAuthor returns one author's active posts, newest first.
func (s *Service) ByAuthor(ctx context.Context, authorID string, offset, limit int) ([]post.Post, int64, error) {
	return s.posts.ListByAuthor(ctx, authorID, offset, limit)
}

// SoftDelete deactivates a post. The actor must be the author or an admin.
// Accrued earnings are kept: a removed post does not claw back what it
// already paid out.
func (s *Service) SoftDelete(ctx context.Context, actorID string, actorIsAdmin bool, postID string) error {
	p, err := s.posts.GetPost(ctx, postID)
	if err != nil {
		return err
	}
	if !actorIsAdmin && p.AuthorID != actorID {
		return fmt.Errorf("user %s does not own post %s: %w", actorID, postID, storage.ErrInvalidInput)
	}
	if !p.Active {
		return nil
	}

	if err := s.posts.DeactivatePost(ctx, postID); err != nil {
		return fmt.Errorf("deactivate post %s: %w", postID, err)
	}
	if err := s.users.AdjustPostsCount(ctx, p.AuthorID, -1); err != nil {
		s.log.WithError(err).WithField("user_id", p.AuthorID).Warn("failed to drop author post count")
	}

	s.log.WithField("post_id", postID).WithField("actor_id", actorID).Info("post deactivated")
	return nil
}
