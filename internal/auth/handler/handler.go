package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"usersapi/internal/auth/cookie"
	"usersapi/internal/auth/models"
	id "usersapi/pkg/domain"
	dErrors "usersapi/pkg/domain-errors"
	"usersapi/pkg/platform/httputil"
	"usersapi/pkg/requestcontext"
)

// Service defines the account operations behind the HTTP surface.
type Service interface {
	Register(ctx context.Context, req *models.RegisterRequest) (*models.User, error)
	Login(ctx context.Context, req *models.LoginRequest) (*models.User, error)
	Refresh(ctx context.Context, userID id.UserID) (*models.User, error)
	ListUsers(ctx context.Context, actor id.Identity) (*models.ListUsersResult, error)
	Profile(ctx context.Context, actor id.Identity) (*models.User, error)
	UpdateUser(ctx context.Context, actor id.Identity, target id.UserID, changes models.UserChanges) (*models.User, error)
	DeleteUser(ctx context.Context, actor id.Identity, target id.UserID) error
}

// SessionIssuer writes and clears the session cookies.
type SessionIssuer interface {
	Issue(ctx context.Context, w http.ResponseWriter, identity id.Identity) error
	Clear(w http.ResponseWriter)
}

// RefreshVerifier checks a refresh token.
type RefreshVerifier interface {
	VerifyRefresh(ctx context.Context, token string) (id.Identity, error)
}

// Handler serves the auth and user endpoints.
type Handler struct {
	auth     Service
	sessions SessionIssuer
	refresh  RefreshVerifier
	logger   *slog.Logger
}

func New(auth Service, sessions SessionIssuer, refresh RefreshVerifier, logger *slog.Logger) *Handler {
	return &Handler{auth: auth, sessions: sessions, refresh: refresh, logger: logger}
}

// RegisterPublic mounts the unauthenticated auth routes.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/auth/register", h.HandleRegister)
	r.Post("/auth/login", h.HandleLogin)
	r.Post("/auth/logout", h.HandleLogout)
	r.Post("/auth/refresh", h.HandleRefresh)
}

// RegisterProtected mounts the user routes. The caller applies the session guard.
func (h *Handler) RegisterProtected(r chi.Router) {
	r.Get("/users", h.HandleListUsers)
	r.Get("/users/profile", h.HandleProfile)
	r.Put("/users/{id}", h.HandleUpdateUser)
	r.Delete("/users/{id}", h.HandleDeleteUser)
}

// HandleRegister implements POST /auth/register.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.RegisterRequest](w, r, h.logger)
	if !ok {
		return
	}

	user, err := h.auth.Register(ctx, req)
	if err != nil {
		h.fail(ctx, w, "register failed", err)
		return
	}
	if !h.issueSession(ctx, w, user) {
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, models.AuthResult{User: models.NewUserResponse(user)})
}

// HandleLogin implements POST /auth/login.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.LoginRequest](w, r, h.logger)
	if !ok {
		return
	}

	user, err := h.auth.Login(ctx, req)
	if err != nil {
		h.fail(ctx, w, "login failed", err)
		return
	}
	if !h.issueSession(ctx, w, user) {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.AuthResult{User: models.NewUserResponse(user)})
}

// HandleLogout implements POST /auth/logout. Always succeeds.
func (h *Handler) HandleLogout(w http.ResponseWriter, _ *http.Request) {
	h.sessions.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

// HandleRefresh implements POST /auth/refresh: verify the refresh cookie,
// reload the user and re-issue both cookies.
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token, ok := cookie.RefreshToken(r)
	if !ok {
		h.fail(ctx, w, "refresh rejected", dErrors.New(dErrors.CodeUnauthorized, "authentication failed"))
		return
	}

	identity, err := h.refresh.VerifyRefresh(ctx, token)
	if err != nil {
		h.sessions.Clear(w)
		h.fail(ctx, w, "refresh rejected", err)
		return
	}

	user, err := h.auth.Refresh(ctx, identity.ID)
	if err != nil {
		h.sessions.Clear(w)
		h.fail(ctx, w, "refresh failed", err)
		return
	}
	if !h.issueSession(ctx, w, user) {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.AuthResult{User: models.NewUserResponse(user)})
}

// HandleListUsers implements GET /users.
func (h *Handler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, err := httputil.RequireIdentity(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	res, err := h.auth.ListUsers(ctx, actor)
	if err != nil {
		h.fail(ctx, w, "list users failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// HandleProfile implements GET /users/profile.
func (h *Handler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, err := httputil.RequireIdentity(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	user, err := h.auth.Profile(ctx, actor)
	if err != nil {
		h.fail(ctx, w, "get profile failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.NewUserResponse(user))
}

// HandleUpdateUser implements PUT /users/{id}.
func (h *Handler) HandleUpdateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, err := httputil.RequireIdentity(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	target, err := id.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.UpdateUserRequest](w, r, h.logger)
	if !ok {
		return
	}

	user, err := h.auth.UpdateUser(ctx, actor, target, req.Changes())
	if err != nil {
		h.fail(ctx, w, "update user failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.NewUserResponse(user))
}

// HandleDeleteUser implements DELETE /users/{id}.
func (h *Handler) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, err := httputil.RequireIdentity(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	target, err := id.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.auth.DeleteUser(ctx, actor, target); err != nil {
		h.fail(ctx, w, "delete user failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) issueSession(ctx context.Context, w http.ResponseWriter, user *models.User) bool {
	if err := h.sessions.Issue(ctx, w, user.Identity()); err != nil {
		h.fail(ctx, w, "issue session failed", dErrors.Wrap(err, dErrors.CodeInternal, "could not start session"))
		return false
	}
	return true
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	level := slog.LevelWarn
	var de *dErrors.Error
	if !errors.As(err, &de) || de.Code == dErrors.CodeInternal {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	httputil.WriteError(w, err)
}
