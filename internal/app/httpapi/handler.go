// Package httpapi exposes the platform services over REST. Identity is
// header-derived: X-User-ID names the caller and the account record supplies
// the role. Authentication mechanics live outside this service.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	app "github.com/dedpost/platform/internal/app"
	"github.com/dedpost/platform/internal/app/domain/payout"
	"github.com/dedpost/platform/internal/app/domain/settings"
	"github.com/dedpost/platform/internal/app/domain/user"
	"github.com/dedpost/platform/pkg/logger"
)

const headerUserID = "X-User-ID"

type contextKey string

const (
	actorKey     contextKey = "actor"
	auditNoteKey contextKey = "auditNote"
)

// auditNote carries per-request audit detail from a handler back to the
// auditTrail middleware.
type auditNote struct {
	target string
}

// annotateAudit records the id of the entity an admin handler acted on.
func annotateAudit(r *http.Request, target string) {
	if note, ok := r.Context().Value(auditNoteKey).(*auditNote); ok {
		note.target = target
	}
}

// Config tunes the HTTP layer.
type Config struct {
	AuditLimit int
	AuditFile  string
}

type handler struct {
	app   *app.Application
	audit *auditLog
	log   *logger.Logger
}

// NewHandler returns a router exposing the core REST API.
func NewHandler(application *app.Application, cfg Config, log *logger.Logger) (http.Handler, error) {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}

	sink, err := newFileAuditSink(cfg.AuditFile)
	if err != nil {
		return nil, fmt.Errorf("open audit sink: %w", err)
	}

	h := &handler{
		app:   application,
		audit: newAuditLog(cfg.AuditLimit, sink),
		log:   log,
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(h.identify)

	r.Get("/healthz", h.healthz)

	r.Route("/users", func(r chi.Router) {
		r.Post("/", h.registerUser)
		r.Get("/{id}", h.getUser)
		r.Get("/{id}/posts", h.userPosts)
	})

	r.Route("/posts", func(r chi.Router) {
		r.Get("/feed", h.feed)
		r.Get("/{id}", h.getPost)
		r.Group(func(r chi.Router) {
			r.Use(h.requireUser)
			r.Post("/", h.createPost)
			r.Post("/{id}/like", h.toggleLike)
			r.Delete("/{id}", h.deletePost)
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(h.requireAdmin)
		r.Use(h.auditTrail)
		r.Get("/dashboard", h.dashboard)
		r.Get("/settings", h.getSettings)
		r.Put("/settings", h.updateSettings)
		r.Get("/payouts", h.listPayouts)
		r.Post("/payouts/approve", h.approvePayout)
		r.Post("/payouts/bulk-approve", h.bulkApprovePayouts)
		r.Get("/audit", h.auditEntries)
		r.Get("/users", h.listUsers)
		r.Put("/users/{id}/status", h.setUserStatus)
		r.Delete("/posts/{id}", h.adminDeletePost)
	})

	return r, nil
}

// --- middleware -------------------------------------------------------------

// identify resolves the caller from the X-User-ID header. Unknown or absent
// IDs leave the request anonymous; access control happens downstream.
func (h *handler) identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(headerUserID))
		if id != "" {
			if actor, err := h.app.Accounts.Get(r.Context(), id); err == nil && actor.Active {
				r = r.WithContext(context.WithValue(r.Context(), actorKey, actor))
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (h *handler) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := actorFrom(r); !ok {
			writeError(w, http.StatusUnauthorized, fmt.Errorf("authentication required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, fmt.Errorf("authentication required"))
			return
		}
		if !actor.IsAdmin() {
			writeError(w, http.StatusForbidden, fmt.Errorf("admin role required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// auditTrail records every admin request in the bounded audit log.
func (h *handler) auditTrail(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		note := &auditNote{}
		r = r.WithContext(context.WithValue(r.Context(), auditNoteKey, note))

		rec := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(rec, r)

		target := note.target
		if target == "" {
			target = chi.URLParam(r, "id")
		}
		entry := auditEntry{
			Time:       time.Now().UTC(),
			Path:       r.URL.Path,
			Method:     r.Method,
			Status:     rec.Status(),
			Target:     target,
			RemoteAddr: r.RemoteAddr,
			UserAgent:  r.UserAgent(),
		}
		if actor, ok := actorFrom(r); ok {
			entry.User = actor.ID
			entry.Role = actor.Role
		}
		h.audit.add(entry)
	})
}

func actorFrom(r *http.Request) (user.User, bool) {
	actor, ok := r.Context().Value(actorKey).(user.User)
	return actor, ok
}

// --- health -----------------------------------------------------------------

func (h *handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- users ------------------------------------------------------------------

func (h *handler) registerUser(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Username string `json:"username"`
		Email    string `json:"email"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	created, err := h.app.Accounts.Register(r.Context(), payload.Username, payload.Email)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *handler) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.app.Accounts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *handler) userPosts(w http.ResponseWriter, r *http.Request) {
	offset, limit := pagination(r)
	posts, total, err := h.app.Posts.ByAuthor(r.Context(), chi.URLParam(r, "id"), offset, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"posts": posts, "total": total})
}

// --- posts ------------------------------------------------------------------

func (h *handler) createPost(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)

	var payload struct {
		Caption   string `json:"caption"`
		MediaURL  string `json:"media_url"`
		MediaType string `json:"media_type"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	created, err := h.app.Posts.Create(r.Context(), actor.ID, payload.Caption, payload.MediaURL, payload.MediaType)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *handler) feed(w http.ResponseWriter, r *http.Request) {
	offset, limit := pagination(r)
	posts, total, err := h.app.Posts.Feed(r.Context(), offset, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"posts": posts, "total": total})
}

// getPost returns one post. An authenticated read also counts as a view:
// the first read per user bumps the counter and accrues earnings, repeats
// are no-ops.
func (h *handler) getPost(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "id")

	actor, authed := actorFrom(r)
	if authed {
		result, err := h.app.Engagement.RecordView(r.Context(), postID, actor.ID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		p, err := h.app.Posts.Get(r.Context(), postID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		liked, err := h.app.Engagement.HasLiked(r.Context(), postID, actor.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"post":         p,
			"view_counted": result.Counted,
			"liked":        liked,
		})
		return
	}

	p, err := h.app.Posts.Get(r.Context(), postID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"post": p})
}

func (h *handler) toggleLike(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)
	result, err := h.app.Engagement.ToggleLike(r.Context(), chi.URLParam(r, "id"), actor.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) deletePost(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)
	if err := h.app.Posts.SoftDelete(r.Context(), actor.ID, actor.IsAdmin(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- admin ------------------------------------------------------------------

func (h *handler) dashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.app.Admin.Dashboard(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

func (h *handler) getSettings(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.app.Settings.Get(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *handler) updateSettings(w http.ResponseWriter, r *http.Request) {
	var upd settings.Update
	if err := decodeJSON(r.Body, &upd); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	saved, err := h.app.Settings.Update(r.Context(), upd)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (h *handler) listPayouts(w http.ResponseWriter, r *http.Request) {
	minAmount := -1.0
	if raw := r.URL.Query().Get("min_amount"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid min_amount %q", raw))
			return
		}
		minAmount = parsed
	}
	if minAmount < 0 {
		cfg, err := h.app.Settings.Get(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		minAmount = cfg.MinPayoutAmount
	}

	offset, limit := pagination(r)
	list, err := h.app.Payouts.ListEligible(r.Context(), minAmount, offset, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) approvePayout(w http.ResponseWriter, r *http.Request) {
	var req payout.Request
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	annotateAudit(r, req.UserID)
	receipt, err := h.app.Payouts.Approve(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (h *handler) bulkApprovePayouts(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Payouts []payout.Request `json:"payouts"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	annotateAudit(r, fmt.Sprintf("%d payout requests", len(payload.Payouts)))
	result, err := h.app.Payouts.BulkApprove(r.Context(), payload.Payouts)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) auditEntries(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}
	writeJSON(w, http.StatusOK, h.audit.listLimit(limit))
}

func (h *handler) listUsers(w http.ResponseWriter, r *http.Request) {
	offset, limit := pagination(r)
	users, total, err := h.app.Accounts.List(r.Context(), offset, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"users": users, "total": total})
}

func (h *handler) setUserStatus(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)

	var payload struct {
		Active bool `json:"active"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	updated, err := h.app.Accounts.SetStatus(r.Context(), actor.ID, chi.URLParam(r, "id"), payload.Active)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) adminDeletePost(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)
	if err := h.app.Posts.SoftDelete(r.Context(), actor.ID, true, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- helpers ----------------------------------------------------------------

func pagination(r *http.Request) (offset, limit int) {
	limit = 20
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	return offset, limit
}
