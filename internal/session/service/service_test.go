package service

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"passage/internal/platform/metrics"
	"passage/internal/session/models"
	"passage/internal/session/service/mocks"
	memstore "passage/internal/session/store/memory"
	dErrors "passage/pkg/domain-errors"
	"passage/pkg/platform/audit"
	auditmem "passage/pkg/platform/audit/store/memory"
	"passage/pkg/platform/sentinel"
)

type ServiceSuite struct {
	suite.Suite
	ctrl   *gomock.Controller
	authn  *mocks.MockAuthenticator
	tokens *memstore.Store
	events *auditmem.InMemoryStore
	svc    *Service
	ctx    context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.authn = mocks.NewMockAuthenticator(s.ctrl)
	s.tokens = memstore.New()
	s.events = auditmem.NewInMemoryStore()
	s.svc = New(s.tokens, s.authn,
		WithLogger(slog.New(slog.DiscardHandler)),
		WithMetrics(metrics.NewNop()),
		WithAudit(s.events),
	)
	s.ctx = context.Background()
}

func teacherPair() (models.Credential, models.Identity) {
	return models.Credential{AccessToken: "tok"},
		models.Identity{ID: "u1", Username: "ada", Email: "ada@example.edu", Role: models.RoleTeacher}
}

func (s *ServiceSuite) TestLogin() {
	s.Run("success authenticates and persists", func() {
		cred, id := teacherPair()
		s.authn.EXPECT().Login(gomock.Any(), "ada", "pw").Return(cred, id, nil)

		role, err := s.svc.Login(s.ctx, "ada", "pw")
		s.Require().NoError(err)
		s.Equal(models.RoleTeacher, role)

		snap := s.svc.Current()
		s.Require().True(snap.Authenticated())
		s.Equal("u1", snap.Identity.ID)

		gotCred, gotID, err := s.tokens.Load(s.ctx)
		s.Require().NoError(err)
		s.Equal(cred, gotCred)
		s.Equal(id, gotID)
	})

	s.Run("failure leaves state untouched", func() {
		s.authn.EXPECT().Login(gomock.Any(), "mallory", "pw").
			Return(models.Credential{}, models.Identity{}, dErrors.New(dErrors.CodeUnauthorized, "wrong password"))

		_, err := s.svc.Login(s.ctx, "mallory", "pw")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
		// The previous subtest's session survives a failed attempt.
		s.True(s.svc.Current().Authenticated())
	})

	s.Run("missing input rejected without calling the API", func() {
		_, err := s.svc.Login(s.ctx, "", "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}

func (s *ServiceSuite) TestLoginUnknownRole() {
	cred := models.Credential{AccessToken: "tok"}
	id := models.Identity{ID: "u2", Username: "eve", Role: models.Role("superuser")}
	s.authn.EXPECT().Login(gomock.Any(), "eve", "pw").Return(cred, id, nil)

	_, err := s.svc.Login(s.ctx, "eve", "pw")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnknownRole))
	s.False(s.svc.Current().Authenticated(), "never grant access on a role outside the closed set")
}

func (s *ServiceSuite) TestLoginStaleResponseDiscarded() {
	cred, id := teacherPair()
	s.authn.EXPECT().Login(gomock.Any(), "ada", "pw").DoAndReturn(
		func(ctx context.Context, _, _ string) (models.Credential, models.Identity, error) {
			// A logout lands while the login response is in flight.
			s.Require().NoError(s.svc.Logout(ctx))
			return cred, id, nil
		})

	_, err := s.svc.Login(s.ctx, "ada", "pw")
	s.Require().ErrorIs(err, sentinel.ErrStale)
	s.False(s.svc.Current().Authenticated())
}

func (s *ServiceSuite) TestHydrate() {
	s.Run("populates from persisted pair", func() {
		cred, id := teacherPair()
		s.Require().NoError(s.tokens.Save(s.ctx, cred, id))

		s.Require().NoError(s.svc.Hydrate(s.ctx))
		snap := s.svc.Current()
		s.Require().True(snap.Authenticated())
		s.Equal(models.RoleTeacher, snap.Identity.Role)
	})

	s.Run("is a no-op afterwards", func() {
		s.Require().NoError(s.tokens.Clear(s.ctx))
		s.Require().NoError(s.svc.Hydrate(s.ctx))
		s.True(s.svc.Current().Authenticated(), "second hydrate must not re-read storage")
	})
}

func (s *ServiceSuite) TestHydrateEmptyStore() {
	s.Require().NoError(s.svc.Hydrate(s.ctx))
	s.False(s.svc.Current().Authenticated())
}

func (s *ServiceSuite) TestHydrateRejectsUnknownRole() {
	cred := models.Credential{AccessToken: "tok"}
	id := models.Identity{ID: "u3", Role: models.Role("owner")}
	s.Require().NoError(s.tokens.Save(s.ctx, cred, id))

	s.Require().NoError(s.svc.Hydrate(s.ctx))
	s.False(s.svc.Current().Authenticated())

	s.Eventually(func() bool {
		_, _, err := s.tokens.Load(s.ctx)
		return err != nil
	}, time.Second, 10*time.Millisecond, "rejected pair should be cleared from storage")
}

func (s *ServiceSuite) TestLogoutIdempotent() {
	cred, id := teacherPair()
	s.authn.EXPECT().Login(gomock.Any(), "ada", "pw").Return(cred, id, nil)
	_, err := s.svc.Login(s.ctx, "ada", "pw")
	s.Require().NoError(err)

	s.Require().NoError(s.svc.Logout(s.ctx))
	s.Require().NoError(s.svc.Logout(s.ctx))

	s.False(s.svc.Current().Authenticated())
	_, _, err = s.tokens.Load(s.ctx)
	s.Require().Error(err)

	events, err := s.events.ListByUser(s.ctx, "u1")
	s.Require().NoError(err)
	logouts := 0
	for _, e := range events {
		if e.Action == audit.ActionLogout {
			logouts++
		}
	}
	s.Equal(1, logouts, "second logout is a no-op, not a second event")
}

func (s *ServiceSuite) TestLogoutFromAnonymous() {
	s.Require().NoError(s.svc.Logout(s.ctx))
	s.False(s.svc.Current().Authenticated())
}

func (s *ServiceSuite) TestExpire() {
	cred, id := teacherPair()
	s.authn.EXPECT().Login(gomock.Any(), "ada", "pw").Return(cred, id, nil)
	_, err := s.svc.Login(s.ctx, "ada", "pw")
	s.Require().NoError(err)

	s.svc.Expire(s.ctx, "backend returned 401")

	s.False(s.svc.Current().Authenticated())
	events, err := s.events.ListByUser(s.ctx, "u1")
	s.Require().NoError(err)
	s.Require().NotEmpty(events)
	s.Equal(audit.ActionSessionExpired, events[len(events)-1].Action)
}

func (s *ServiceSuite) TestRefreshProfile() {
	cred, id := teacherPair()
	s.authn.EXPECT().Login(gomock.Any(), "ada", "pw").Return(cred, id, nil)
	_, err := s.svc.Login(s.ctx, "ada", "pw")
	s.Require().NoError(err)

	s.Run("updates mutable fields only", func() {
		s.authn.EXPECT().Profile(gomock.Any(), cred).Return(models.Identity{
			ID:       "someone-else",
			Username: "ada.l",
			Email:    "ada.l@example.edu",
			Role:     models.RoleAdmin,
		}, nil)

		s.Require().NoError(s.svc.RefreshProfile(s.ctx))

		snap := s.svc.Current()
		s.Require().True(snap.Authenticated())
		s.Equal("ada.l", snap.Identity.Username)
		s.Equal("ada.l@example.edu", snap.Identity.Email)
		s.Equal("u1", snap.Identity.ID, "id is immutable for the session lifetime")
		s.Equal(models.RoleTeacher, snap.Identity.Role, "role is immutable for the session lifetime")
	})

	s.Run("response omitting fields keeps cached values", func() {
		s.authn.EXPECT().Profile(gomock.Any(), cred).Return(models.Identity{}, nil)

		s.Require().NoError(s.svc.RefreshProfile(s.ctx))

		snap := s.svc.Current()
		s.Equal("ada.l", snap.Identity.Username)
		s.Equal(models.RoleTeacher, snap.Identity.Role)
	})
}

func (s *ServiceSuite) TestRefreshProfileStaleResponseDiscarded() {
	cred, id := teacherPair()
	s.authn.EXPECT().Login(gomock.Any(), "ada", "pw").Return(cred, id, nil)
	_, err := s.svc.Login(s.ctx, "ada", "pw")
	s.Require().NoError(err)

	s.authn.EXPECT().Profile(gomock.Any(), cred).DoAndReturn(
		func(ctx context.Context, _ models.Credential) (models.Identity, error) {
			// Logout resolves before the refresh response arrives.
			s.Require().NoError(s.svc.Logout(ctx))
			return models.Identity{Username: "ghost"}, nil
		})

	s.Require().NoError(s.svc.RefreshProfile(s.ctx))
	s.False(s.svc.Current().Authenticated(), "stale refresh must not resurrect the session")
}

func (s *ServiceSuite) TestRefreshProfileWithoutSession() {
	err := s.svc.RefreshProfile(s.ctx)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}
