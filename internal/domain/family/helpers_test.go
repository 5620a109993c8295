package family_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	familydomain "family-circle-go/internal/domain/family"
	"family-circle-go/internal/domain/storage"
	userdomain "family-circle-go/internal/domain/user"
	"family-circle-go/internal/repository/inmemory"
	"family-circle-go/pkg/logger"
	"github.com/stretchr/testify/require"
)

var errWriteConflict = errors.New("write conflict")

type fakeBlobs struct {
	mu        sync.Mutex
	objects   map[string][]byte
	deleted   []string
	uploadErr error
	deleteErr error
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: make(map[string][]byte)}
}

func (b *fakeBlobs) Upload(_ context.Context, data []byte, filename, _ string) (storage.Object, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.uploadErr != nil {
		return storage.Object{}, b.uploadErr
	}
	key := storage.NewKey(filename)
	b.objects[key] = data
	return storage.Object{URL: "https://blobs.test/" + key, Key: key}, nil
}

func (b *fakeBlobs) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.deleteErr != nil {
		return b.deleteErr
	}
	if _, ok := b.objects[key]; !ok {
		return storage.ErrObjectNotFound
	}
	delete(b.objects, key)
	b.deleted = append(b.deleted, key)
	return nil
}

func (b *fakeBlobs) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}

// failingRepo fails the nth CreateRequest issued inside a transaction.
type failingRepo struct {
	familydomain.Repository
	failAt int
	calls  *int
}

func (f *failingRepo) Transaction(ctx context.Context, fn func(familydomain.Repository) error) error {
	return f.Repository.Transaction(ctx, func(tx familydomain.Repository) error {
		return fn(&failingRepo{Repository: tx, failAt: f.failAt, calls: f.calls})
	})
}

func (f *failingRepo) CreateRequest(ctx context.Context, request *familydomain.Request) error {
	*f.calls++
	if *f.calls == f.failAt {
		return errWriteConflict
	}
	return f.Repository.CreateRequest(ctx, request)
}

type fixture struct {
	store   *inmemory.Store
	blobs   *fakeBlobs
	service *familydomain.Service
}

func newFixture(t *testing.T, opts ...familydomain.Option) *fixture {
	t.Helper()
	store := inmemory.NewStore()
	blobs := newFakeBlobs()
	return &fixture{
		store:   store,
		blobs:   blobs,
		service: familydomain.NewService(store, blobs, logger.NewNop(), opts...),
	}
}

func (f *fixture) addUser(t *testing.T, id, firstName, lastName string) {
	t.Helper()
	require.NoError(t, f.store.UpsertProfile(context.Background(), userdomain.Profile{
		UserID:    id,
		Email:     id + "@example.com",
		FirstName: firstName,
		LastName:  lastName,
	}))
}

func (f *fixture) createFamily(t *testing.T, creatorID, name string) *familydomain.Family {
	t.Helper()
	family, err := f.service.CreateFamily(context.Background(), familydomain.CreateFamilyInput{
		Name:        name,
		Description: name + " family",
		CreatorID:   creatorID,
	})
	require.NoError(t, err)
	return family
}

func (f *fixture) family(t *testing.T, id string) *familydomain.Family {
	t.Helper()
	family, err := f.store.GetFamilyByID(context.Background(), id)
	require.NoError(t, err)
	return family
}

func (f *fixture) user(t *testing.T, id string) *userdomain.User {
	t.Helper()
	user, err := f.store.GetUserByID(context.Background(), id)
	require.NoError(t, err)
	return user
}

func (f *fixture) request(t *testing.T, id string) *familydomain.Request {
	t.Helper()
	request, err := f.store.GetRequestByID(context.Background(), id)
	require.NoError(t, err)
	return request
}

func (f *fixture) invite(t *testing.T, familyID, adminID, userID string) *familydomain.Request {
	t.Helper()
	before := f.family(t, familyID).PendingRequests
	updated, err := f.service.AddFamilyMembers(context.Background(), familyID, adminID, []string{userID})
	require.NoError(t, err)
	require.Len(t, updated.PendingRequests, len(before)+1)
	return f.request(t, updated.PendingRequests[len(updated.PendingRequests)-1])
}

func userProfile(id string) userdomain.Profile {
	return userdomain.Profile{UserID: id, Email: id + "@example.com", FirstName: id}
}
