// Package memory provides an in-memory implementation of the storage
// interfaces. It is safe for concurrent use and is primarily intended for
// tests and local development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dedpost/platform/internal/app/domain/ledger"
	"github.com/dedpost/platform/internal/app/domain/post"
	"github.com/dedpost/platform/internal/app/domain/settings"
	"github.com/dedpost/platform/internal/app/domain/user"
	"github.com/dedpost/platform/internal/app/storage"
)

const moneyEpsilon = 1e-9

// Store is the in-memory implementation of every store interface.
type Store struct {
	mu        sync.RWMutex
	nextID    int64
	users     map[string]user.User
	userOrder []string
	posts     map[string]post.Post
	postOrder []string
	views     map[string]map[string]time.Time
	likes     map[string]map[string]time.Time
	settings  *settings.Settings
	events    map[string]ledger.Event
	eventIDs  []string
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.PostStore = (*Store)(nil)
var _ storage.SettingsStore = (*Store)(nil)
var _ storage.LedgerStore = (*Store)(nil)
var _ storage.StatsStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID: 1,
		users:  make(map[string]user.User),
		posts:  make(map[string]post.Post),
		views:  make(map[string]map[string]time.Time),
		likes:  make(map[string]map[string]time.Time),
		events: make(map[string]ledger.Event),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

// UserStore implementation ----------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if strings.EqualFold(existing.Username, u.Username) || strings.EqualFold(existing.Email, u.Email) {
			return user.User{}, fmt.Errorf("user %s: %w", u.Username, storage.ErrDuplicate)
		}
	}

	if u.ID == "" {
		u.ID = s.nextIDLocked()
	} else if _, exists := s.users[u.ID]; exists {
		return user.User{}, fmt.Errorf("user %s: %w", u.ID, storage.ErrDuplicate)
	}

	if u.Role == "" {
		u.Role = user.RoleUser
	}
	now := time.Now().UTC()
	u.Active = true
	u.CreatedAt = now
	u.UpdatedAt = now

	s.users[u.ID] = u
	s.userOrder = append(s.userOrder, u.ID)
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	return u, nil
}

func (s *Store) ListUsers(_ context.Context, offset, limit int) ([]user.User, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]user.User, 0, len(s.userOrder))
	for _, id := range s.userOrder {
		all = append(all, s.users[id])
	}
	total := int64(len(all))
	return pageUsers(all, offset, limit), total, nil
}

func (s *Store) SetUserStatus(_ context.Context, id string, active bool) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	u.Active = active
	u.UpdatedAt = time.Now().UTC()
	s.users[id] = u
	return u, nil
}

func (s *Store) AdjustPostsCount(_ context.Context, id string, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	u.PostsCount += delta
	if u.PostsCount < 0 {
		u.PostsCount = 0
	}
	u.UpdatedAt = time.Now().UTC()
	s.users[id] = u
	return nil
}

func (s *Store) SettlePayout(_ context.Context, id string, amount float64) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	if amount > u.PendingEarnings+moneyEpsilon {
		return user.User{}, fmt.Errorf("settle %.4f against pending %.4f: %w", amount, u.PendingEarnings, storage.ErrInsufficientFunds)
	}

	u.PendingEarnings -= amount
	if u.PendingEarnings < 0 {
		u.PendingEarnings = 0
	}
	u.PaidEarnings += amount
	u.UpdatedAt = time.Now().UTC()
	s.users[id] = u
	return u, nil
}

func (s *Store) ListPayable(_ context.Context, minAmount float64, offset, limit int) ([]user.User, int64, float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]user.User, 0)
	var totalPayable float64
	for _, id := range s.userOrder {
		u := s.users[id]
		if !u.Active || u.Role != user.RoleUser {
			continue
		}
		if u.PendingEarnings+moneyEpsilon < minAmount {
			continue
		}
		matches = append(matches, u)
		totalPayable += u.PendingEarnings
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].PendingEarnings > matches[j].PendingEarnings
	})
	total := int64(len(matches))
	return pageUsers(matches, offset, limit), total, totalPayable, nil
}

// PostStore implementation ----------------------------------------------------

func (s *Store) CreatePost(_ context.Context, p post.Post) (post.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = s.nextIDLocked()
	} else if _, exists := s.posts[p.ID]; exists {
		return post.Post{}, fmt.Errorf("post %s: %w", p.ID, storage.ErrDuplicate)
	}
	if _, ok := s.users[p.AuthorID]; !ok {
		return post.Post{}, fmt.Errorf("author %s: %w", p.AuthorID, storage.ErrNotFound)
	}

	now := time.Now().UTC()
	p.Active = true
	p.CreatedAt = now
	p.UpdatedAt = now

	s.posts[p.ID] = p
	s.postOrder = append(s.postOrder, p.ID)
	s.views[p.ID] = make(map[string]time.Time)
	s.likes[p.ID] = make(map[string]time.Time)
	return p, nil
}

func (s *Store) GetPost(_ context.Context, id string) (post.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.posts[id]
	if !ok {
		return post.Post{}, fmt.Errorf("post %s: %w", id, storage.ErrNotFound)
	}
	return p, nil
}

func (s *Store) ListFeed(_ context.Context, offset, limit int) ([]post.Post, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	active := s.activePostsNewestFirstLocked()
	total := int64(len(active))
	return pagePosts(active, offset, limit), total, nil
}

func (s *Store) ListByAuthor(_ context.Context, authorID string, offset, limit int) ([]post.Post, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]post.Post, 0)
	for _, p := range s.activePostsNewestFirstLocked() {
		if p.AuthorID == authorID {
			matches = append(matches, p)
		}
	}
	total := int64(len(matches))
	return pagePosts(matches, offset, limit), total, nil
}

func (s *Store) ListTopEarning(_ context.Context, limit int) ([]post.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	active := s.activePostsNewestFirstLocked()
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].TotalEarnings > active[j].TotalEarnings
	})
	if limit > 0 && len(active) > limit {
		active = active[:limit]
	}
	return active, nil
}

func (s *Store) DeactivatePost(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[id]
	if !ok {
		return fmt.Errorf("post %s: %w", id, storage.ErrNotFound)
	}
	p.Active = false
	p.UpdatedAt = time.Now().UTC()
	s.posts[id] = p
	return nil
}

func (s *Store) InsertView(_ context.Context, postID, userID string, at time.Time) (bool, post.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[postID]
	if !ok || !p.Active {
		return false, post.Post{}, fmt.Errorf("post %s: %w", postID, storage.ErrNotFound)
	}

	if _, seen := s.views[postID][userID]; seen {
		return false, p, nil
	}
	s.views[postID][userID] = at.UTC()
	p.ViewsCount++
	p.UpdatedAt = time.Now().UTC()
	s.posts[postID] = p
	return true, p, nil
}

func (s *Store) ToggleLike(_ context.Context, postID, userID string, at time.Time) (bool, post.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[postID]
	if !ok || !p.Active {
		return false, post.Post{}, fmt.Errorf("post %s: %w", postID, storage.ErrNotFound)
	}

	if _, liked := s.likes[postID][userID]; liked {
		delete(s.likes[postID], userID)
		p.LikesCount--
		if p.LikesCount < 0 {
			p.LikesCount = 0
		}
		p.UpdatedAt = time.Now().UTC()
		s.posts[postID] = p
		return false, p, nil
	}

	s.likes[postID][userID] = at.UTC()
	p.LikesCount++
	p.UpdatedAt = time.Now().UTC()
	s.posts[postID] = p
	return true, p, nil
}

func (s *Store) HasViewed(_ context.Context, postID, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.posts[postID]; !ok {
		return false, fmt.Errorf("post %s: %w", postID, storage.ErrNotFound)
	}
	_, seen := s.views[postID][userID]
	return seen, nil
}

func (s *Store) HasLiked(_ context.Context, postID, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.posts[postID]; !ok {
		return false, fmt.Errorf("post %s: %w", postID, storage.ErrNotFound)
	}
	_, liked := s.likes[postID][userID]
	return liked, nil
}

func (s *Store) IncrementEarnings(_ context.Context, postID string, kind storage.EarningsKind, delta float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creditPostLocked(postID, kind, delta)
}

func (s *Store) creditPostLocked(postID string, kind storage.EarningsKind, delta float64) error {
	p, ok := s.posts[postID]
	if !ok {
		return fmt.Errorf("post %s: %w", postID, storage.ErrNotFound)
	}

	switch kind {
	case storage.EarningsView:
		p.ViewEarnings += delta
	case storage.EarningsLike:
		p.LikeEarnings += delta
	default:
		return fmt.Errorf("unknown earnings kind %q", kind)
	}
	p.TotalEarnings += delta
	p.UpdatedAt = time.Now().UTC()
	s.posts[postID] = p
	return nil
}

// SettingsStore implementation ------------------------------------------------

func (s *Store) GetSettings(_ context.Context) (settings.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.settings == nil {
		defaults := settings.Defaults()
		defaults.UpdatedAt = time.Now().UTC()
		s.settings = &defaults
	}
	return *s.settings, nil
}

func (s *Store) PutSettings(_ context.Context, cfg settings.Settings) (settings.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg.UpdatedAt = time.Now().UTC()
	s.settings = &cfg
	return cfg, nil
}

// LedgerStore implementation --------------------------------------------------

func (s *Store) AppendEvent(_ context.Context, ev ledger.Event) (ledger.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.ID == "" {
		ev.ID = s.nextIDLocked()
	} else if _, exists := s.events[ev.ID]; exists {
		return ledger.Event{}, fmt.Errorf("event %s: %w", ev.ID, storage.ErrDuplicate)
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	ev.PostAppliedAt = nil
	ev.AppliedAt = nil

	s.events[ev.ID] = ev
	s.eventIDs = append(s.eventIDs, ev.ID)
	return ev, nil
}

func (s *Store) GetEvent(_ context.Context, id string) (ledger.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ev, ok := s.events[id]
	if !ok {
		return ledger.Event{}, fmt.Errorf("event %s: %w", id, storage.ErrNotFound)
	}
	return ev, nil
}

func (s *Store) ApplyEventToPost(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.events[eventID]
	if !ok {
		return false, fmt.Errorf("event %s: %w", eventID, storage.ErrNotFound)
	}
	if ev.PostAppliedAt != nil {
		return false, nil
	}

	kind := storage.EarningsLike
	if ev.Type == ledger.EventView {
		kind = storage.EarningsView
	}
	if err := s.creditPostLocked(ev.PostID, kind, ev.Delta); err != nil {
		return false, err
	}

	now := time.Now().UTC()
	ev.PostAppliedAt = &now
	s.events[eventID] = ev
	return true, nil
}

func (s *Store) ApplyEventToAuthor(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.events[eventID]
	if !ok {
		return false, fmt.Errorf("event %s: %w", eventID, storage.ErrNotFound)
	}
	if ev.AppliedAt != nil {
		return false, nil
	}

	u, ok := s.users[ev.AuthorID]
	if !ok {
		return false, fmt.Errorf("author %s: %w", ev.AuthorID, storage.ErrNotFound)
	}
	// The delta is applied as-is to both fields so the total stays the sum
	// of pending and paid; an unlike after a settlement legitimately drives
	// pending below zero until new accruals cover it.
	u.TotalEarnings += ev.Delta
	u.PendingEarnings += ev.Delta
	u.UpdatedAt = time.Now().UTC()
	s.users[ev.AuthorID] = u

	now := time.Now().UTC()
	ev.AppliedAt = &now
	s.events[eventID] = ev
	return true, nil
}

func (s *Store) ListUnapplied(_ context.Context, olderThan time.Time, limit int) ([]ledger.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ledger.Event, 0)
	for _, id := range s.eventIDs {
		ev := s.events[id]
		if (ev.PostAppliedAt != nil && ev.AppliedAt != nil) || !ev.CreatedAt.Before(olderThan) {
			continue
		}
		out = append(out, ev)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// StatsStore implementation ---------------------------------------------------

func (s *Store) PlatformStats(_ context.Context) (storage.PlatformStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats storage.PlatformStats
	for _, u := range s.users {
		if !u.Active {
			continue
		}
		stats.TotalUsers++
		if u.Role == user.RoleUser {
			stats.TotalPayable += u.PendingEarnings
		}
	}
	for _, p := range s.posts {
		if !p.Active {
			continue
		}
		stats.TotalPosts++
		stats.TotalViews += p.ViewsCount
		stats.TotalLikes += p.LikesCount
		stats.TotalComments += p.CommentsCount
		stats.TotalEarnings += p.TotalEarnings
	}
	return stats, nil
}

// helpers ----------------------------------------------------------------------

func (s *Store) activePostsNewestFirstLocked() []post.Post {
	out := make([]post.Post, 0, len(s.postOrder))
	for i := len(s.postOrder) - 1; i >= 0; i-- {
		p := s.posts[s.postOrder[i]]
		if p.Active {
			out = append(out, p)
		}
	}
	return out
}

func pageUsers(all []user.User, offset, limit int) []user.User {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return []user.User{}
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]user.User, end-offset)
	copy(out, all[offset:end])
	return out
}

func pagePosts(all []post.Post, offset, limit int) []post.Post {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return []post.Post{}
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]post.Post, end-offset)
	copy(out, all[offset:end])
	return out
}
