// Package repotest holds behaviour every family.Repository backend must share.
// Backends run it from their own tests against a clean store.
package repotest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	familydomain "family-circle-go/internal/domain/family"
	userdomain "family-circle-go/internal/domain/user"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Backend struct {
	Families familydomain.Repository
	Users    userdomain.Repository
}

// Run executes the contract. setup must return an empty backend each call.
func Run(t *testing.T, setup func(t *testing.T) Backend) {
	cases := []struct {
		name string
		fn   func(t *testing.T, b Backend)
	}{
		{"family round trip", testFamilyRoundTrip},
		{"update family details", testUpdateFamilyDetails},
		{"reference arrays are sets", testReferenceArrays},
		{"resolve request compare and set", testResolveRequest},
		{"transaction rolls back", testTransactionRollback},
		{"list families", testListFamilies},
		{"list users by ids", testListUsersByIDs},
		{"pending requests visibility", testPendingRequests},
		{"user family links", testUserFamilies},
		{"concurrent member appends", testConcurrentMemberAppends},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, setup(t))
		})
	}
}

var errAbort = errors.New("abort")

func newUser(t *testing.T, b Backend, id, first, last string) {
	t.Helper()
	require.NoError(t, b.Users.UpsertProfile(context.Background(), userdomain.Profile{
		UserID:    id,
		Email:     id + "@example.test",
		FirstName: first,
		LastName:  last,
	}))
}

func newFamily(t *testing.T, b Backend, creatorID, name string, createdAt time.Time) *familydomain.Family {
	t.Helper()
	family := &familydomain.Family{
		ID:              uuid.NewString(),
		Name:            name,
		Description:     "the " + name + " family",
		CreatorID:       creatorID,
		Members:         pq.StringArray{creatorID},
		PendingRequests: pq.StringArray{},
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}
	require.NoError(t, b.Families.CreateFamily(context.Background(), family))
	return family
}

func newRequest(t *testing.T, b Backend, kind familydomain.RequestType, userID, familyID string) *familydomain.Request {
	t.Helper()
	now := time.Now().UTC()
	request := &familydomain.Request{
		ID:          uuid.NewString(),
		RequestType: kind,
		UserID:      userID,
		FamilyID:    familyID,
		Status:      familydomain.RequestStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	ctx := context.Background()
	require.NoError(t, b.Families.CreateRequest(ctx, request))
	require.NoError(t, b.Families.AddPendingRequest(ctx, familyID, request.ID))
	return request
}

func testFamilyRoundTrip(t *testing.T, b Backend) {
	ctx := context.Background()
	newUser(t, b, "alice", "Alice", "Okafor")
	created := newFamily(t, b, "alice", "Okafor", time.Now().UTC())

	got, err := b.Families.GetFamilyByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Name, got.Name)
	assert.Equal(t, created.Description, got.Description)
	assert.Equal(t, "alice", got.CreatorID)
	assert.Equal(t, []string{"alice"}, []string(got.Members))
	assert.Empty(t, got.PendingRequests)
	assert.Nil(t, got.Image)

	_, err = b.Families.GetFamilyByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, familydomain.ErrFamilyNotFound)
}

func testUpdateFamilyDetails(t *testing.T, b Backend) {
	ctx := context.Background()
	newUser(t, b, "alice", "Alice", "Okafor")
	family := newFamily(t, b, "alice", "Okafor", time.Now().UTC())

	image, key := "https://blobs.test/k", "k"
	family.Name = "Okafor-Adeyemi"
	family.Image = &image
	family.ImageKey = &key
	require.NoError(t, b.Families.UpdateFamilyDetails(ctx, family))

	got, err := b.Families.GetFamilyByID(ctx, family.ID)
	require.NoError(t, err)
	assert.Equal(t, "Okafor-Adeyemi", got.Name)
	require.NotNil(t, got.ImageKey)
	assert.Equal(t, "k", *got.ImageKey)

	family.Image, family.ImageKey = nil, nil
	require.NoError(t, b.Families.UpdateFamilyDetails(ctx, family))
	got, err = b.Families.GetFamilyByID(ctx, family.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Image)
	assert.Nil(t, got.ImageKey)

	missing := *family
	missing.ID = uuid.NewString()
	assert.ErrorIs(t, b.Families.UpdateFamilyDetails(ctx, &missing), familydomain.ErrFamilyNotFound)
}

func testReferenceArrays(t *testing.T, b Backend) {
	ctx := context.Background()
	newUser(t, b, "alice", "Alice", "Okafor")
	family := newFamily(t, b, "alice", "Okafor", time.Now().UTC())

	require.NoError(t, b.Families.AddFamilyMember(ctx, family.ID, "bob"))
	require.NoError(t, b.Families.AddFamilyMember(ctx, family.ID, "bob"))
	require.NoError(t, b.Families.AddPendingRequest(ctx, family.ID, "r1"))
	require.NoError(t, b.Families.AddPendingRequest(ctx, family.ID, "r2"))
	require.NoError(t, b.Families.RemovePendingRequest(ctx, family.ID, "r1"))

	got, err := b.Families.GetFamilyByID(ctx, family.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, []string(got.Members))
	assert.Equal(t, []string{"r2"}, []string(got.PendingRequests))

	assert.ErrorIs(t, b.Families.AddFamilyMember(ctx, uuid.NewString(), "bob"), familydomain.ErrFamilyNotFound)
	assert.ErrorIs(t, b.Families.RemovePendingRequest(ctx, uuid.NewString(), "r2"), familydomain.ErrFamilyNotFound)
}

func testResolveRequest(t *testing.T, b Backend) {
	ctx := context.Background()
	newUser(t, b, "alice", "Alice", "Okafor")
	newUser(t, b, "bob", "Bob", "Adeyemi")
	family := newFamily(t, b, "alice", "Okafor", time.Now().UTC())
	request := newRequest(t, b, familydomain.RequestTypeUserRequest, "bob", family.ID)

	require.NoError(t, b.Families.ResolveRequest(ctx, request.ID, familydomain.RequestStatusAccepted))
	assert.ErrorIs(t, b.Families.ResolveRequest(ctx, request.ID, familydomain.RequestStatusDeclined),
		familydomain.ErrRequestAlreadyResolved)
	assert.ErrorIs(t, b.Families.ResolveRequest(ctx, uuid.NewString(), familydomain.RequestStatusAccepted),
		familydomain.ErrRequestNotFound)

	got, err := b.Families.GetRequestByID(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, familydomain.RequestStatusAccepted, got.Status)
	assert.Equal(t, familydomain.RequestTypeUserRequest, got.RequestType)
	assert.Equal(t, "bob", got.UserID)
	assert.Equal(t, family.ID, got.FamilyID)

	_, err = b.Families.GetRequestByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, familydomain.ErrRequestNotFound)
}

func testTransactionRollback(t *testing.T, b Backend) {
	ctx := context.Background()
	newUser(t, b, "alice", "Alice", "Okafor")
	existing := newFamily(t, b, "alice", "Okafor", time.Now().UTC())

	var createdID string
	err := b.Families.Transaction(ctx, func(tx familydomain.Repository) error {
		now := time.Now().UTC()
		family := &familydomain.Family{
			ID:              uuid.NewString(),
			Name:            "Ghost",
			Description:     "rolled back",
			CreatorID:       "alice",
			Members:         pq.StringArray{"alice"},
			PendingRequests: pq.StringArray{},
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		createdID = family.ID
		if err := tx.CreateFamily(ctx, family); err != nil {
			return err
		}
		if err := tx.AddFamilyMember(ctx, existing.ID, "bob"); err != nil {
			return err
		}
		if err := tx.AddUserFamily(ctx, "alice", family.ID); err != nil {
			return err
		}
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)

	_, err = b.Families.GetFamilyByID(ctx, createdID)
	assert.ErrorIs(t, err, familydomain.ErrFamilyNotFound)

	got, err := b.Families.GetFamilyByID(ctx, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, []string(got.Members))

	alice, err := b.Families.GetUserByID(ctx, "alice")
	require.NoError(t, err)
	assert.NotContains(t, alice.Families, createdID)
}

func testListFamilies(t *testing.T, b Backend) {
	ctx := context.Background()
	newUser(t, b, "alice", "Alice", "Okafor")
	newUser(t, b, "bob", "Bob", "Adeyemi")

	base := time.Now().UTC().Truncate(time.Second)
	oldest := newFamily(t, b, "alice", "Okafor", base)
	middle := newFamily(t, b, "bob", "Adeyemi", base.Add(time.Minute))
	newest := newFamily(t, b, "alice", "Okonkwo", base.Add(2*time.Minute))
	require.NoError(t, b.Families.AddFamilyMember(ctx, middle.ID, "alice"))

	all, total, err := b.Families.ListFamilies(ctx, familydomain.FamilyFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, all, 3)
	assert.Equal(t, []string{newest.ID, middle.ID, oldest.ID}, familyIDs(all))

	mine, total, err := b.Families.ListFamilies(ctx, familydomain.FamilyFilter{MemberID: "bob"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, []string{middle.ID}, familyIDs(mine))

	found, total, err := b.Families.ListFamilies(ctx, familydomain.FamilyFilter{Search: "OK", Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, []string{oldest.ID}, familyIDs(found))

	// Wildcards in the search term are literals.
	none, total, err := b.Families.ListFamilies(ctx, familydomain.FamilyFilter{Search: "%"})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, none)
}

func testListUsersByIDs(t *testing.T, b Backend) {
	ctx := context.Background()
	for i, name := range []string{"Ada", "Bola", "Chidi", "Dayo"} {
		newUser(t, b, fmt.Sprintf("u%d", i), name, "Okafor")
	}

	users, total, err := b.Families.ListUsersByIDs(ctx, []string{"u0", "u1", "u2", "missing"}, familydomain.UserFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, users, 3)

	users, total, err = b.Families.ListUsersByIDs(ctx, []string{"u0", "u1", "u2", "u3"}, familydomain.UserFilter{Search: "chi"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, users, 1)
	assert.Equal(t, "u2", users[0].ID)

	users, total, err = b.Families.ListUsersByIDs(ctx, []string{"u0", "u1", "u2", "u3"}, familydomain.UserFilter{Limit: 3, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Len(t, users, 2)

	users, total, err = b.Families.ListUsersByIDs(ctx, nil, familydomain.UserFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, users)

	_, err = b.Families.GetUserByID(ctx, "missing")
	assert.ErrorIs(t, err, familydomain.ErrUserNotFound)
}

func testPendingRequests(t *testing.T, b Backend) {
	ctx := context.Background()
	newUser(t, b, "alice", "Alice", "Okafor")
	newUser(t, b, "bob", "Bob", "Adeyemi")
	newUser(t, b, "carol", "Carol", "Eze")
	family := newFamily(t, b, "alice", "Okafor", time.Now().UTC())

	join := newRequest(t, b, familydomain.RequestTypeUserRequest, "bob", family.ID)
	invite := newRequest(t, b, familydomain.RequestTypeFamilyInvitation, "carol", family.ID)
	resolved := newRequest(t, b, familydomain.RequestTypeUserRequest, "carol", family.ID)
	require.NoError(t, b.Families.ResolveRequest(ctx, resolved.ID, familydomain.RequestStatusDeclined))

	creator, err := b.Families.ListPendingRequestsForUser(ctx, "alice")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{join.ID, invite.ID}, viewIDs(creator))

	bob, err := b.Families.ListPendingRequestsForUser(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, bob, 1)
	assert.Equal(t, join.ID, bob[0].Request.ID)
	assert.Equal(t, family.ID, bob[0].Family.ID)
	assert.Equal(t, "Bob", bob[0].User.FirstName)

	carol, err := b.Families.ListPendingRequestsForUser(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, []string{invite.ID}, viewIDs(carol))

	nobody, err := b.Families.ListPendingRequestsForUser(ctx, "dave")
	require.NoError(t, err)
	assert.Empty(t, nobody)
}

func testUserFamilies(t *testing.T, b Backend) {
	ctx := context.Background()
	newUser(t, b, "alice", "Alice", "Okafor")

	require.NoError(t, b.Families.AddUserFamily(ctx, "alice", "f1"))
	require.NoError(t, b.Families.AddUserFamily(ctx, "alice", "f1"))
	require.NoError(t, b.Families.AddUserFamily(ctx, "alice", "f2"))

	// A later profile refresh keeps the family links.
	newUser(t, b, "alice", "Alicia", "")

	alice, err := b.Families.GetUserByID(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"f1", "f2"}, []string(alice.Families))
	assert.Equal(t, "Alicia", alice.FirstName)
	assert.Equal(t, "Okafor", alice.LastName)

	assert.ErrorIs(t, b.Families.AddUserFamily(ctx, "missing", "f1"), familydomain.ErrUserNotFound)
}

func testConcurrentMemberAppends(t *testing.T, b Backend) {
	ctx := context.Background()
	newUser(t, b, "alice", "Alice", "Okafor")
	family := newFamily(t, b, "alice", "Okafor", time.Now().UTC())

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- b.Families.AddFamilyMember(ctx, family.ID, fmt.Sprintf("member-%d", i))
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := b.Families.GetFamilyByID(ctx, family.ID)
	require.NoError(t, err)
	assert.Len(t, got.Members, writers+1)
}

func familyIDs(families []familydomain.Family) []string {
	ids := make([]string, 0, len(families))
	for _, family := range families {
		ids = append(ids, family.ID)
	}
	return ids
}

func viewIDs(views []familydomain.PendingRequestView) []string {
	ids := make([]string, 0, len(views))
	for _, view := range views {
		ids = append(ids, view.Request.ID)
	}
	return ids
}
