package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"passage/pkg/platform/audit"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.ctx = context.Background()
}

func (s *InMemoryStoreSuite) TestAppendAndListByUser() {
	s.Require().NoError(s.store.Append(s.ctx, audit.NewEvent(audit.ActionLogin, "u1", "")))
	s.Require().NoError(s.store.Append(s.ctx, audit.NewEvent(audit.ActionIdleLogout, "u1", "idle")))
	s.Require().NoError(s.store.Append(s.ctx, audit.NewEvent(audit.ActionLogin, "u2", "")))

	events, err := s.store.ListByUser(s.ctx, "u1")
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(audit.ActionLogin, events[0].Action)
	s.Equal(audit.ActionIdleLogout, events[1].Action)
	s.Equal("idle", events[1].Reason)
}

func (s *InMemoryStoreSuite) TestListByUserUnknown() {
	events, err := s.store.ListByUser(s.ctx, "nobody")
	s.Require().NoError(err)
	s.Empty(events)
}

func (s *InMemoryStoreSuite) TestListAll() {
	s.Require().NoError(s.store.Append(s.ctx, audit.NewEvent(audit.ActionLogin, "u1", "")))
	s.Require().NoError(s.store.Append(s.ctx, audit.NewEvent(audit.ActionLogout, "u2", "")))

	events, err := s.store.ListAll(s.ctx)
	s.Require().NoError(err)
	s.Len(events, 2)
}

func (s *InMemoryStoreSuite) TestClear() {
	s.Require().NoError(s.store.Append(s.ctx, audit.NewEvent(audit.ActionLogin, "u1", "")))
	s.store.Clear()

	events, err := s.store.ListAll(s.ctx)
	s.Require().NoError(err)
	s.Empty(events)
}
