//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"passage/pkg/platform/audit"
	"passage/pkg/platform/audit/store/postgres"
	"passage/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *postgres.Store
	ctx   context.Context
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = postgres.New(s.pg.DB)
	s.ctx = context.Background()
	s.Require().NoError(s.store.Migrate(s.ctx))
}

func (s *PostgresStoreSuite) TearDownSuite() {
	_ = s.pg.DB.Close()
	_ = s.pg.Container.Terminate(context.Background())
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateAll(s.ctx))
}

func (s *PostgresStoreSuite) TestMigrateIdempotent() {
	s.Require().NoError(s.store.Migrate(s.ctx))
}

func (s *PostgresStoreSuite) TestAppendAndListByUser() {
	first := audit.NewEvent(audit.ActionLogin, "u1", "")
	second := audit.NewEvent(audit.ActionIdleLogout, "u1", "idle")
	second.Timestamp = first.Timestamp.Add(time.Second)
	other := audit.NewEvent(audit.ActionLogin, "u2", "")

	s.Require().NoError(s.store.Append(s.ctx, first))
	s.Require().NoError(s.store.Append(s.ctx, second))
	s.Require().NoError(s.store.Append(s.ctx, other))

	events, err := s.store.ListByUser(s.ctx, "u1")
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(audit.ActionLogin, events[0].Action)
	s.Equal(audit.ActionIdleLogout, events[1].Action)
	s.Equal("idle", events[1].Reason)
	s.Equal(first.ID, events[0].ID)
}

func (s *PostgresStoreSuite) TestListByUserUnknown() {
	events, err := s.store.ListByUser(s.ctx, "nobody")
	s.Require().NoError(err)
	s.Empty(events)
}

func (s *PostgresStoreSuite) TestAnonymousEvents() {
	// Failed logins carry no user id; the empty string must round trip.
	e := audit.NewEvent(audit.ActionLoginFailed, "", "unknown user")
	s.Require().NoError(s.store.Append(s.ctx, e))

	events, err := s.store.ListByUser(s.ctx, "")
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(audit.ActionLoginFailed, events[0].Action)
}
