package service

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/mock/gomock"

	"usersapi/internal/audit"
	"usersapi/internal/auth/models"
	id "usersapi/pkg/domain"
	dErrors "usersapi/pkg/domain-errors"
	"usersapi/pkg/platform/sentinel"
	"usersapi/pkg/requestcontext"
)

func (s *ServiceSuite) TestRegister() {
	req := &models.RegisterRequest{Email: "a@x.com", Password: "correct-horse", FirstName: "Ada"}

	s.Run("creates the user and records the event after commit", func() {
		var created *models.User
		gomock.InOrder(
			s.mockHash.EXPECT().Hash("correct-horse").Return("bcrypt-hash", nil),
			s.mockUsers.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
				func(_ any, u *models.User) models.CreateResult {
					created = u
					return models.CreateResult{Outcome: models.Created}
				}),
			s.mockAudit.EXPECT().Record(gomock.Any(), "a@x.com", audit.OpRegister, gomock.Any()),
		)

		user, err := s.service.Register(s.ctx, req)
		s.Require().NoError(err)
		s.Same(created, user)
		s.Equal("bcrypt-hash", user.PasswordHash)
		s.Equal(testNow, user.CreatedAt)
		s.False(user.ID.IsNil())
	})

	s.Run("duplicate email is a conflict and is not audited", func() {
		s.mockHash.EXPECT().Hash(gomock.Any()).Return("h", nil)
		s.mockUsers.EXPECT().Create(gomock.Any(), gomock.Any()).Return(models.CreateResult{Outcome: models.DuplicateKey})

		_, err := s.service.Register(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("generic store failure is internal", func() {
		s.mockHash.EXPECT().Hash(gomock.Any()).Return("h", nil)
		s.mockUsers.EXPECT().Create(gomock.Any(), gomock.Any()).
			Return(models.CreateResult{Outcome: models.Failed, Err: errors.New("connection reset")})

		_, err := s.service.Register(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("hash failure stops before the store", func() {
		s.mockHash.EXPECT().Hash(gomock.Any()).Return("", dErrors.New(dErrors.CodeValidation, "password is too long"))

		_, err := s.service.Register(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestLogin() {
	user := s.newTestUser("a@x.com")

	s.Run("valid credentials", func() {
		ctx := requestcontext.WithClientMetadata(s.ctx, "203.0.113.9", "")
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), "a@x.com").Return(user, nil)
		s.mockHash.EXPECT().Verify("pw", "stored-hash").Return(nil)
		s.mockAudit.EXPECT().Record(gomock.Any(), "a@x.com", audit.OpLogin, "signed in from Unknown Device (203.0.113.9)")

		got, err := s.service.Login(ctx, &models.LoginRequest{Email: "a@x.com", Password: "pw"})
		s.Require().NoError(err)
		s.Equal(user.ID, got.ID)
	})

	s.Run("wrong password", func() {
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), "a@x.com").Return(user, nil)
		s.mockHash.EXPECT().Verify("bad", "stored-hash").Return(dErrors.New(dErrors.CodeInvalidCredentials, "invalid credentials"))

		_, err := s.service.Login(s.ctx, &models.LoginRequest{Email: "a@x.com", Password: "bad"})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidCredentials))
	})

	s.Run("unknown email fails the same way and still compares a hash", func() {
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), "ghost@x.com").Return(nil, fmt.Errorf("user not found: %w", sentinel.ErrNotFound))
		s.mockHash.EXPECT().Hash(gomock.Any()).Return("dummy", nil).MaxTimes(1)
		s.mockHash.EXPECT().Verify("pw", "dummy").Return(errors.New("mismatch"))

		_, err := s.service.Login(s.ctx, &models.LoginRequest{Email: "ghost@x.com", Password: "pw"})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidCredentials))
		s.Equal("invalid email or password", err.Error())
	})

	s.Equal(2.0, testutil.ToFloat64(s.metrics.AuthFailures.WithLabelValues("invalid_credentials")))
}

func (s *ServiceSuite) TestRefresh() {
	user := s.newTestUser("a@x.com")

	s.Run("returns current user data", func() {
		s.mockUsers.EXPECT().FindByID(gomock.Any(), user.ID).Return(user, nil)
		got, err := s.service.Refresh(s.ctx, user.ID)
		s.Require().NoError(err)
		s.Equal(user, got)
	})

	s.Run("deleted user is unauthenticated", func() {
		s.mockUsers.EXPECT().FindByID(gomock.Any(), user.ID).Return(nil, sentinel.ErrNotFound)
		_, err := s.service.Refresh(s.ctx, user.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *ServiceSuite) TestListUsers() {
	actor := s.actor()
	users := []*models.User{s.newTestUser("a@x.com"), s.newTestUser("b@x.com")}

	s.mockUsers.EXPECT().ListAll(gomock.Any()).Return(users, nil)
	s.mockAudit.EXPECT().Record(gomock.Any(), "admin@x.com", audit.OpList, "listed 2 users")

	result, err := s.service.ListUsers(s.ctx, actor)
	s.Require().NoError(err)
	s.Equal(2, result.Total)
	s.Equal("b@x.com", result.Users[1].Email)
}

func (s *ServiceSuite) TestListUsersStoreFailureIsNotAudited() {
	s.mockUsers.EXPECT().ListAll(gomock.Any()).Return(nil, errors.New("timeout"))

	_, err := s.service.ListUsers(s.ctx, s.actor())
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *ServiceSuite) TestProfile() {
	user := s.newTestUser("me@x.com")
	actor := user.Identity()

	s.mockUsers.EXPECT().FindByID(gomock.Any(), user.ID).Return(user, nil)
	s.mockAudit.EXPECT().Record(gomock.Any(), "me@x.com", audit.OpView, "viewed own profile")

	got, err := s.service.Profile(s.ctx, actor)
	s.Require().NoError(err)
	s.Equal(user, got)
}

func (s *ServiceSuite) TestUpdateUser() {
	actor := s.actor()

	s.Run("applies changes and audits", func() {
		target := s.newTestUser("old@x.com")
		newEmail := "new@x.com"
		gomock.InOrder(
			s.mockUsers.EXPECT().FindByID(gomock.Any(), target.ID).Return(target, nil),
			s.mockUsers.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil),
			s.mockAudit.EXPECT().Record(gomock.Any(), "admin@x.com", audit.OpUpdate, fmt.Sprintf("updated user %s", target.ID)),
		)

		got, err := s.service.UpdateUser(s.ctx, actor, target.ID, models.UserChanges{Email: &newEmail})
		s.Require().NoError(err)
		s.Equal("new@x.com", got.Email)
		s.Equal("Ada", got.FirstName)
		s.Equal(testNow, got.UpdatedAt)
	})

	s.Run("missing user", func() {
		missing := id.NewUserID()
		s.mockUsers.EXPECT().FindByID(gomock.Any(), missing).Return(nil, fmt.Errorf("user not found: %w", sentinel.ErrNotFound))

		_, err := s.service.UpdateUser(s.ctx, actor, missing, models.UserChanges{})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("email taken", func() {
		target := s.newTestUser("old@x.com")
		taken := "taken@x.com"
		s.mockUsers.EXPECT().FindByID(gomock.Any(), target.ID).Return(target, nil)
		s.mockUsers.EXPECT().Update(gomock.Any(), gomock.Any()).Return(fmt.Errorf("email already in use: %w", sentinel.ErrConflict))

		_, err := s.service.UpdateUser(s.ctx, actor, target.ID, models.UserChanges{Email: &taken})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *ServiceSuite) TestDeleteUser() {
	actor := s.actor()
	target := id.NewUserID()

	s.Run("deletes and audits", func() {
		gomock.InOrder(
			s.mockUsers.EXPECT().Delete(gomock.Any(), target).Return(nil),
			s.mockAudit.EXPECT().Record(gomock.Any(), "admin@x.com", audit.OpDelete, fmt.Sprintf("deleted user %s", target)),
		)
		s.Require().NoError(s.service.DeleteUser(s.ctx, actor, target))
		s.Equal(1.0, testutil.ToFloat64(s.metrics.UsersDeleted))
	})

	s.Run("missing user is not found and not audited", func() {
		s.mockUsers.EXPECT().Delete(gomock.Any(), target).Return(sentinel.ErrNotFound)
		err := s.service.DeleteUser(s.ctx, actor, target)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
