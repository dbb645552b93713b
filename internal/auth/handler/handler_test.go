package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"usersapi/internal/auth/handler/mocks"
	"usersapi/internal/auth/models"
	id "usersapi/pkg/domain"
	dErrors "usersapi/pkg/domain-errors"
	"usersapi/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks

type HandlerSuite struct {
	suite.Suite
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

type fixture struct {
	service  *mocks.MockService
	sessions *mocks.MockSessionIssuer
	refresh  *mocks.MockRefreshVerifier
	router   chi.Router
}

var caller = id.Identity{ID: id.NewUserID(), Email: "caller@x.com"}

func newFixture(t *testing.T, authenticated bool) *fixture {
	ctrl := gomock.NewController(t)
	f := &fixture{
		service:  mocks.NewMockService(ctrl),
		sessions: mocks.NewMockSessionIssuer(ctrl),
		refresh:  mocks.NewMockRefreshVerifier(ctrl),
	}
	h := New(f.service, f.sessions, f.refresh, slog.New(slog.NewTextHandler(io.Discard, nil)))

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		h.RegisterPublic(r)
		r.Group(func(r chi.Router) {
			if authenticated {
				r.Use(func(next http.Handler) http.Handler {
					return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
						next.ServeHTTP(w, r.WithContext(requestcontext.WithIdentity(r.Context(), caller)))
					})
				})
			}
			h.RegisterProtected(r)
		})
	})
	f.router = r
	return f
}

func (f *fixture) do(method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func testUser(email string) *models.User {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return &models.User{ID: id.NewUserID(), Email: email, PasswordHash: "secret-hash", FirstName: "Ada", CreatedAt: now, UpdatedAt: now}
}

func (s *HandlerSuite) TestRegister() {
	s.T().Run("201 sets cookies and hides the hash", func(t *testing.T) {
		f := newFixture(t, false)
		user := testUser("a@x.com")
		f.service.EXPECT().Register(gomock.Any(), &models.RegisterRequest{
			Email: "a@x.com", Password: "correct-horse", FirstName: "Ada",
		}).Return(user, nil)
		f.sessions.EXPECT().Issue(gomock.Any(), gomock.Any(), user.Identity()).Return(nil)

		rr := f.do(http.MethodPost, "/api/auth/register", `{"email":" A@x.com","password":"correct-horse","first_name":"Ada"}`)

		assert.Equal(t, http.StatusCreated, rr.Code)
		assert.NotContains(t, rr.Body.String(), "secret-hash")
		assert.NotContains(t, rr.Body.String(), "token")
		body := decodeBody(t, rr)
		assert.Equal(t, "a@x.com", body["user"].(map[string]any)["email"])
	})

	s.T().Run("409 on duplicate email without cookies", func(t *testing.T) {
		f := newFixture(t, false)
		f.service.EXPECT().Register(gomock.Any(), gomock.Any()).Return(nil, dErrors.New(dErrors.CodeConflict, "email already registered"))
		f.sessions.EXPECT().Issue(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		rr := f.do(http.MethodPost, "/api/auth/register", `{"email":"a@x.com","password":"correct-horse"}`)

		assert.Equal(t, http.StatusConflict, rr.Code)
		assert.Equal(t, "conflict", decodeBody(t, rr)["error"])
	})

	s.T().Run("400 on invalid body", func(t *testing.T) {
		f := newFixture(t, false)
		f.service.EXPECT().Register(gomock.Any(), gomock.Any()).Times(0)

		rr := f.do(http.MethodPost, "/api/auth/register", `{"email":"nope","password":"correct-horse"}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)

		rr = f.do(http.MethodPost, "/api/auth/register", `{"email":`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	s.T().Run("500 when the session cannot be issued", func(t *testing.T) {
		f := newFixture(t, false)
		f.service.EXPECT().Register(gomock.Any(), gomock.Any()).Return(testUser("a@x.com"), nil)
		f.sessions.EXPECT().Issue(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("signing failed"))

		rr := f.do(http.MethodPost, "/api/auth/register", `{"email":"a@x.com","password":"correct-horse"}`)
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}

func (s *HandlerSuite) TestLogin() {
	s.T().Run("200 sets cookies", func(t *testing.T) {
		f := newFixture(t, false)
		user := testUser("a@x.com")
		f.service.EXPECT().Login(gomock.Any(), &models.LoginRequest{Email: "a@x.com", Password: "pw"}).Return(user, nil)
		f.sessions.EXPECT().Issue(gomock.Any(), gomock.Any(), user.Identity()).Return(nil)

		rr := f.do(http.MethodPost, "/api/auth/login", `{"email":"a@x.com","password":"pw"}`)
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	s.T().Run("401 on bad credentials", func(t *testing.T) {
		f := newFixture(t, false)
		f.service.EXPECT().Login(gomock.Any(), gomock.Any()).Return(nil, dErrors.New(dErrors.CodeInvalidCredentials, "invalid email or password"))

		rr := f.do(http.MethodPost, "/api/auth/login", `{"email":"a@x.com","password":"pw"}`)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "invalid_credentials", decodeBody(t, rr)["error"])
	})
}

func (s *HandlerSuite) TestLogoutAlwaysClears() {
	f := newFixture(s.T(), false)
	f.sessions.EXPECT().Clear(gomock.Any()).Times(2)

	rr := f.do(http.MethodPost, "/api/auth/logout", "")
	s.Equal(http.StatusNoContent, rr.Code)

	rr = f.do(http.MethodPost, "/api/auth/logout", "", &http.Cookie{Name: "access_token", Value: "whatever"})
	s.Equal(http.StatusNoContent, rr.Code)
}

func (s *HandlerSuite) TestRefresh() {
	s.T().Run("re-issues cookies from current user data", func(t *testing.T) {
		f := newFixture(t, false)
		user := testUser("renamed@x.com")
		stale := id.Identity{ID: user.ID, Email: "old@x.com"}
		f.refresh.EXPECT().VerifyRefresh(gomock.Any(), "refresh-jwt").Return(stale, nil)
		f.service.EXPECT().Refresh(gomock.Any(), user.ID).Return(user, nil)
		f.sessions.EXPECT().Issue(gomock.Any(), gomock.Any(), user.Identity()).Return(nil)

		rr := f.do(http.MethodPost, "/api/auth/refresh", "", &http.Cookie{Name: "refresh_token", Value: "refresh-jwt"})
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	s.T().Run("401 without cookie", func(t *testing.T) {
		f := newFixture(t, false)
		rr := f.do(http.MethodPost, "/api/auth/refresh", "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	s.T().Run("401 and cleared cookies on invalid token", func(t *testing.T) {
		f := newFixture(t, false)
		f.refresh.EXPECT().VerifyRefresh(gomock.Any(), "bad").Return(id.Identity{}, dErrors.New(dErrors.CodeUnauthorized, "authentication failed"))
		f.sessions.EXPECT().Clear(gomock.Any())

		rr := f.do(http.MethodPost, "/api/auth/refresh", "", &http.Cookie{Name: "refresh_token", Value: "bad"})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func (s *HandlerSuite) TestListUsers() {
	f := newFixture(s.T(), true)
	result := &models.ListUsersResult{Users: []models.UserResponse{models.NewUserResponse(testUser("a@x.com"))}, Total: 1}
	f.service.EXPECT().ListUsers(gomock.Any(), caller).Return(result, nil)

	rr := f.do(http.MethodGet, "/api/users", "")
	s.Equal(http.StatusOK, rr.Code)
	s.EqualValues(1, decodeBody(s.T(), rr)["total"])
}

func (s *HandlerSuite) TestProtectedRoutesNeedIdentity() {
	f := newFixture(s.T(), false)

	rr := f.do(http.MethodGet, "/api/users/profile", "")
	s.Equal(http.StatusInternalServerError, rr.Code)
}

func (s *HandlerSuite) TestProfile() {
	f := newFixture(s.T(), true)
	user := testUser("caller@x.com")
	f.service.EXPECT().Profile(gomock.Any(), caller).Return(user, nil)

	rr := f.do(http.MethodGet, "/api/users/profile", "")
	s.Equal(http.StatusOK, rr.Code)
	s.Equal(user.ID.String(), decodeBody(s.T(), rr)["id"])
}

func (s *HandlerSuite) TestUpdateUser() {
	s.T().Run("200", func(t *testing.T) {
		f := newFixture(t, true)
		target := testUser("a@x.com")
		f.service.EXPECT().UpdateUser(gomock.Any(), caller, target.ID, gomock.Any()).DoAndReturn(
			func(_ context.Context, _ id.Identity, _ id.UserID, changes models.UserChanges) (*models.User, error) {
				require.NotNil(t, changes.FirstName)
				assert.Equal(t, "Grace", *changes.FirstName)
				assert.Nil(t, changes.Email)
				target.FirstName = *changes.FirstName
				return target, nil
			})

		rr := f.do(http.MethodPut, "/api/users/"+target.ID.String(), `{"first_name":" Grace "}`)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "Grace", decodeBody(t, rr)["first_name"])
	})

	s.T().Run("400 on malformed id", func(t *testing.T) {
		f := newFixture(t, true)
		rr := f.do(http.MethodPut, "/api/users/not-a-uuid", `{}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	s.T().Run("404 on missing user", func(t *testing.T) {
		f := newFixture(t, true)
		f.service.EXPECT().UpdateUser(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "user not found"))

		rr := f.do(http.MethodPut, "/api/users/"+id.NewUserID().String(), `{}`)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func (s *HandlerSuite) TestDeleteUser() {
	s.T().Run("204", func(t *testing.T) {
		f := newFixture(t, true)
		target := id.NewUserID()
		f.service.EXPECT().DeleteUser(gomock.Any(), caller, target).Return(nil)

		rr := f.do(http.MethodDelete, "/api/users/"+target.String(), "")
		assert.Equal(t, http.StatusNoContent, rr.Code)
	})

	s.T().Run("internal errors hide details", func(t *testing.T) {
		f := newFixture(t, true)
		f.service.EXPECT().DeleteUser(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(dErrors.Wrap(errors.New("pq: connection refused"), dErrors.CodeInternal, "delete user failed"))

		rr := f.do(http.MethodDelete, "/api/users/"+id.NewUserID().String(), "")
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.NotContains(t, rr.Body.String(), "connection refused")
	})
}
