package inmemory

import (
	"context"
	"errors"
	"testing"
	"time"

	familydomain "family-circle-go/internal/domain/family"
	userdomain "family-circle-go/internal/domain/user"
	"github.com/lib/pq"
	"github.com/stretchr/testify/suite"
)

type StoreSuite struct {
	suite.Suite
	ctx   context.Context
	store *Store
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewStore()
	s.Require().NoError(s.store.UpsertProfile(s.ctx, userdomain.Profile{UserID: "u1", FirstName: "Ada", LastName: "Okafor", Email: "ada@example.com"}))
	s.Require().NoError(s.store.CreateFamily(s.ctx, &familydomain.Family{
		ID:          "fam-1",
		Name:        "Okafors",
		Description: "Lagos branch",
		CreatorID:   "u1",
		Members:     pq.StringArray{"u1"},
		CreatedAt:   time.Now(),
	}))
}

func (s *StoreSuite) TestTransactionRollsBackEveryWrite() {
	boom := errors.New("boom")

	err := s.store.Transaction(s.ctx, func(tx familydomain.Repository) error {
		s.Require().NoError(tx.CreateRequest(s.ctx, &familydomain.Request{ID: "req-1", FamilyID: "fam-1", UserID: "u2", Status: familydomain.RequestStatusPending}))
		s.Require().NoError(tx.AddPendingRequest(s.ctx, "fam-1", "req-1"))
		s.Require().NoError(tx.AddUserFamily(s.ctx, "u1", "fam-2"))
		return boom
	})
	s.Require().ErrorIs(err, boom)

	_, err = s.store.GetRequestByID(s.ctx, "req-1")
	s.ErrorIs(err, familydomain.ErrRequestNotFound)

	family, err := s.store.GetFamilyByID(s.ctx, "fam-1")
	s.Require().NoError(err)
	s.Empty(family.PendingRequests)

	user, err := s.store.GetUserByID(s.ctx, "u1")
	s.Require().NoError(err)
	s.Empty(user.Families)
}

func (s *StoreSuite) TestNestedTransactionJoinsOuter() {
	err := s.store.Transaction(s.ctx, func(tx familydomain.Repository) error {
		return tx.Transaction(s.ctx, func(inner familydomain.Repository) error {
			return inner.AddFamilyMember(s.ctx, "fam-1", "u2")
		})
	})
	s.Require().NoError(err)

	family, err := s.store.GetFamilyByID(s.ctx, "fam-1")
	s.Require().NoError(err)
	s.Equal([]string{"u1", "u2"}, []string(family.Members))
}

func (s *StoreSuite) TestResolveRequestIsCompareAndSet() {
	s.Require().NoError(s.store.CreateRequest(s.ctx, &familydomain.Request{ID: "req-1", FamilyID: "fam-1", UserID: "u2", Status: familydomain.RequestStatusPending}))

	s.Require().NoError(s.store.ResolveRequest(s.ctx, "req-1", familydomain.RequestStatusDeclined))
	s.ErrorIs(s.store.ResolveRequest(s.ctx, "req-1", familydomain.RequestStatusAccepted), familydomain.ErrRequestAlreadyResolved)
	s.ErrorIs(s.store.ResolveRequest(s.ctx, "missing", familydomain.RequestStatusAccepted), familydomain.ErrRequestNotFound)

	request, err := s.store.GetRequestByID(s.ctx, "req-1")
	s.Require().NoError(err)
	s.Equal(familydomain.RequestStatusDeclined, request.Status)
}

func (s *StoreSuite) TestArrayWritesAreSetLike() {
	s.Require().NoError(s.store.AddFamilyMember(s.ctx, "fam-1", "u1"))
	s.Require().NoError(s.store.AddUserFamily(s.ctx, "u1", "fam-1"))
	s.Require().NoError(s.store.AddUserFamily(s.ctx, "u1", "fam-1"))

	family, err := s.store.GetFamilyByID(s.ctx, "fam-1")
	s.Require().NoError(err)
	s.Equal([]string{"u1"}, []string(family.Members))

	user, err := s.store.GetUserByID(s.ctx, "u1")
	s.Require().NoError(err)
	s.Equal([]string{"fam-1"}, []string(user.Families))

	s.ErrorIs(s.store.AddFamilyMember(s.ctx, "missing", "u1"), familydomain.ErrFamilyNotFound)
	s.ErrorIs(s.store.AddUserFamily(s.ctx, "ghost", "fam-1"), familydomain.ErrUserNotFound)
}

func (s *StoreSuite) TestReturnedDocumentsDoNotAlias() {
	family, err := s.store.GetFamilyByID(s.ctx, "fam-1")
	s.Require().NoError(err)
	family.Members[0] = "mutated"

	again, err := s.store.GetFamilyByID(s.ctx, "fam-1")
	s.Require().NoError(err)
	s.Equal("u1", again.Members[0])
}

func (s *StoreSuite) TestUpdateFamilyDetailsLeavesArraysAlone() {
	s.Require().NoError(s.store.AddPendingRequest(s.ctx, "fam-1", "req-9"))

	err := s.store.UpdateFamilyDetails(s.ctx, &familydomain.Family{ID: "fam-1", Name: "Renamed", Description: "d"})
	s.Require().NoError(err)

	family, err := s.store.GetFamilyByID(s.ctx, "fam-1")
	s.Require().NoError(err)
	s.Equal("Renamed", family.Name)
	s.Equal([]string{"u1"}, []string(family.Members))
	s.Equal([]string{"req-9"}, []string(family.PendingRequests))
}

func (s *StoreSuite) TestUpsertProfileKeepsFamilies() {
	s.Require().NoError(s.store.AddUserFamily(s.ctx, "u1", "fam-1"))
	s.Require().NoError(s.store.UpsertProfile(s.ctx, userdomain.Profile{UserID: "u1", FirstName: "Adaeze"}))

	user, err := s.store.GetUserByID(s.ctx, "u1")
	s.Require().NoError(err)
	s.Equal("Adaeze", user.FirstName)
	s.Equal("Okafor", user.LastName)
	s.Equal([]string{"fam-1"}, []string(user.Families))
}

func (s *StoreSuite) TestPendingRequestsJoin() {
	s.Require().NoError(s.store.UpsertProfile(s.ctx, userdomain.Profile{UserID: "u2"}))
	s.Require().NoError(s.store.UpsertProfile(s.ctx, userdomain.Profile{UserID: "u3"}))
	now := time.Now()
	for _, request := range []familydomain.Request{
		{ID: "invite", RequestType: familydomain.RequestTypeFamilyInvitation, FamilyID: "fam-1", UserID: "u2", Status: familydomain.RequestStatusPending, CreatedAt: now},
		{ID: "join", RequestType: familydomain.RequestTypeUserRequest, FamilyID: "fam-1", UserID: "u3", Status: familydomain.RequestStatusPending, CreatedAt: now.Add(time.Second)},
		{ID: "done", RequestType: familydomain.RequestTypeUserRequest, FamilyID: "fam-1", UserID: "u3", Status: familydomain.RequestStatusDeclined, CreatedAt: now},
		{ID: "orphan", RequestType: familydomain.RequestTypeFamilyInvitation, FamilyID: "gone", UserID: "u2", Status: familydomain.RequestStatusPending, CreatedAt: now},
	} {
		request := request
		s.Require().NoError(s.store.CreateRequest(s.ctx, &request))
	}

	forCreator, err := s.store.ListPendingRequestsForUser(s.ctx, "u1")
	s.Require().NoError(err)
	s.Require().Len(forCreator, 2)
	s.Equal("join", forCreator[0].Request.ID)
	s.Equal("invite", forCreator[1].Request.ID)
	s.Equal("fam-1", forCreator[0].Family.ID)
	s.Equal("u3", forCreator[0].User.ID)

	forInvitee, err := s.store.ListPendingRequestsForUser(s.ctx, "u2")
	s.Require().NoError(err)
	s.Require().Len(forInvitee, 1)
	s.Equal("invite", forInvitee[0].Request.ID)
}

func (s *StoreSuite) TestListUsersByIDsSearch() {
	s.Require().NoError(s.store.UpsertProfile(s.ctx, userdomain.Profile{UserID: "u2", FirstName: "Bola", LastName: "Eze", Email: "bola@okafor.ng"}))
	s.Require().NoError(s.store.UpsertProfile(s.ctx, userdomain.Profile{UserID: "u3", FirstName: "Chidi", LastName: "Eze"}))

	users, total, err := s.store.ListUsersByIDs(s.ctx, []string{"u1", "u2", "u3", "u2", "ghost"}, familydomain.UserFilter{Search: "OKAFOR"})
	s.Require().NoError(err)
	s.Equal(int64(2), total)
	s.Len(users, 2)

	users, total, err = s.store.ListUsersByIDs(s.ctx, []string{"u1", "u2", "u3"}, familydomain.UserFilter{Limit: 1, Offset: 2})
	s.Require().NoError(err)
	s.Equal(int64(3), total)
	s.Len(users, 1)
}

func (s *StoreSuite) TestListFamiliesOutOfRangeOffsetIsEmpty() {
	for _, offset := range []int{-20, 1, 1 << 40} {
		families, total, err := s.store.ListFamilies(s.ctx, familydomain.FamilyFilter{Offset: offset, Limit: 10})
		s.Require().NoError(err)
		s.Empty(families, "offset %d", offset)
		s.Equal(int64(1), total)
	}
}
