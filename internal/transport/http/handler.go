package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/fanforge/forum-service/internal/domain"
	"github.com/fanforge/forum-service/internal/postgres"
	"github.com/fanforge/forum-service/internal/service"
	httpmw "github.com/fanforge/forum-service/internal/transport/http/middleware"
	"github.com/fanforge/forum-service/internal/wire"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	forumSvc   *service.ForumService
	messageSvc *service.MessageService
	userSvc    *service.UserService
}

func NewHandler(forum *service.ForumService, message *service.MessageService, user *service.UserService) *Handler {
	return &Handler{
		forumSvc:   forum,
		messageSvc: message,
		userSvc:    user,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain sentinels onto the HTTP taxonomy. Permission errors
// are actionable for the UI ("subscribe to send messages"), never retried.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrPermissionDenied):
		writeJSON(w, http.StatusForbidden, ErrorResponse{Error: "permission_denied"})
	case errors.Is(err, domain.ErrForumNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "forum_not_found"})
	case errors.Is(err, domain.ErrCommunityNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "community_not_found"})
	case errors.Is(err, domain.ErrMessageNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "message_not_found"})
	case errors.Is(err, domain.ErrUserNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "user_not_found"})
	case errors.Is(err, domain.ErrEmptyContent),
		errors.Is(err, domain.ErrContentTooLong),
		errors.Is(err, domain.ErrParentMismatch),
		errors.Is(err, postgres.ErrInvalidCursor):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	default:
		slog.Error("handler error", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

// POST /communities
func (h *Handler) CreateCommunity(w http.ResponseWriter, r *http.Request) {
	var req CreateCommunityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}
	ownerID := httpmw.UserIDFromCtx(r.Context())

	c, forums, err := h.forumSvc.CreateCommunity(r.Context(), ownerID, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := CommunityResponse{
		ID:        c.ID,
		OwnerID:   c.OwnerID,
		Name:      c.Name,
		CreatedAt: c.CreatedAt,
		Forums:    make([]ForumItem, 0, len(forums)),
	}
	for _, f := range forums {
		resp.Forums = append(resp.Forums, ForumItem{
			ID:          f.ID,
			CommunityID: f.CommunityID,
			Type:        string(f.Type),
			CreatedAt:   f.CreatedAt,
		})
	}
	writeJSON(w, http.StatusCreated, resp)
}

// GET /communities/{id}
func (h *Handler) GetCommunity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	c, forums, err := h.forumSvc.GetCommunity(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := CommunityResponse{
		ID:        c.ID,
		OwnerID:   c.OwnerID,
		Name:      c.Name,
		CreatedAt: c.CreatedAt,
		Forums:    make([]ForumItem, 0, len(forums)),
	}
	for _, f := range forums {
		resp.Forums = append(resp.Forums, ForumItem{
			ID:          f.ID,
			CommunityID: f.CommunityID,
			Type:        string(f.Type),
			CreatedAt:   f.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// POST /communities/{id}/subscribe
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	communityID := chi.URLParam(r, "id")
	userID := httpmw.UserIDFromCtx(r.Context())

	if err := h.forumSvc.Subscribe(r.Context(), communityID, userID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "subscribed"})
}

// GET /forums/{id}
func (h *Handler) GetForum(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	f, err := h.forumSvc.GetForum(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ForumItem{
		ID:          f.ID,
		CommunityID: f.CommunityID,
		Type:        string(f.Type),
		CreatedAt:   f.CreatedAt,
	})
}

// GET /forums/{id}/messages?limit=&cursor=
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	forumID := chi.URLParam(r, "id")
	cursor := r.URL.Query().Get("cursor")
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			limit = n
		}
	}

	items, next, err := h.messageSvc.History(r.Context(), forumID, cursor, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := MessagesResponse{Items: make([]wire.Message, 0, len(items)), NextCursor: next}
	for _, m := range items {
		resp.Items = append(resp.Items, wire.FromDomain(m))
	}
	writeJSON(w, http.StatusOK, resp)
}

// POST /forums/{id}/messages
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	forumID := chi.URLParam(r, "id")
	authorID := httpmw.UserIDFromCtx(r.Context())

	var req PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}

	m, err := h.messageSvc.Post(r.Context(), forumID, authorID, req.Content, req.ParentID, req.Media)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, wire.FromDomain(*m))
}

// POST /forums/{id}/messages/{mid}/reactions
func (h *Handler) ToggleReaction(w http.ResponseWriter, r *http.Request) {
	forumID := chi.URLParam(r, "id")
	messageID := chi.URLParam(r, "mid")
	userID := httpmw.UserIDFromCtx(r.Context())

	var req ToggleReactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}

	m, err := h.messageSvc.ToggleReaction(r.Context(), forumID, messageID, userID, req.Emoji)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.FromDomain(*m))
}

// PUT /forums/{id}/messages/{mid}/pin
func (h *Handler) SetPin(w http.ResponseWriter, r *http.Request) {
	forumID := chi.URLParam(r, "id")
	messageID := chi.URLParam(r, "mid")
	callerID := httpmw.UserIDFromCtx(r.Context())

	var req SetPinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}

	m, err := h.messageSvc.SetPinned(r.Context(), forumID, messageID, callerID, req.Pinned)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.FromDomain(*m))
}

// PUT /users/{id}
func (h *Handler) UpsertUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id != httpmw.UserIDFromCtx(r.Context()) {
		// profiles are self-managed
		writeError(w, domain.ErrPermissionDenied)
		return
	}

	var req UpsertUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}

	u := &domain.User{ID: id, DisplayName: req.DisplayName, AvatarURL: req.AvatarURL}
	if err := h.userSvc.Register(r.Context(), u); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
	})
}

// GET /users/{id}
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	u, err := h.userSvc.Lookup(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, UserResponse{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
	})
}
