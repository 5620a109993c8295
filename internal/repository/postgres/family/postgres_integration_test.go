//go:build integration

package family_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	familydomain "family-circle-go/internal/domain/family"
	"family-circle-go/internal/domain/storage"
	userdomain "family-circle-go/internal/domain/user"
	pgfamily "family-circle-go/internal/repository/postgres/family"
	pguser "family-circle-go/internal/repository/postgres/user"
	"family-circle-go/internal/repository/repotest"
	"family-circle-go/internal/testutil/containers"
	"family-circle-go/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopBlobs struct{}

func (nopBlobs) Upload(context.Context, []byte, string, string) (storage.Object, error) {
	return storage.Object{}, errors.New("uploads disabled")
}

func (nopBlobs) Delete(context.Context, string) error { return nil }

func TestPostgresRepositoryContract(t *testing.T) {
	pg := containers.NewPostgresContainer(t)

	repotest.Run(t, func(t *testing.T) repotest.Backend {
		require.NoError(t, pg.Truncate(context.Background()))
		return repotest.Backend{
			Families: pgfamily.NewPostgres(pg.DB),
			Users:    pguser.NewPostgres(pg.DB),
		}
	})
}

func TestPostgresConcurrentAcceptsKeepEveryMember(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	ctx := context.Background()

	users := userdomain.NewService(pguser.NewPostgres(pg.DB))
	service := familydomain.NewService(pgfamily.NewPostgres(pg.DB), nopBlobs{}, logger.NewNop())

	require.NoError(t, users.UpsertProfile(ctx, userdomain.Profile{UserID: "admin", FirstName: "Ada"}))
	family, err := service.CreateFamily(ctx, familydomain.CreateFamilyInput{
		Name:        "Okafor",
		Description: "Lagos branch",
		CreatorID:   "admin",
	})
	require.NoError(t, err)

	const joiners = 6
	requests := make([]string, 0, joiners)
	for i := 0; i < joiners; i++ {
		userID := fmt.Sprintf("joiner-%d", i)
		require.NoError(t, users.UpsertProfile(ctx, userdomain.Profile{UserID: userID, FirstName: userID}))
		request, err := service.RequestToJoinFamily(ctx, family.ID, userID)
		require.NoError(t, err)
		requests = append(requests, request.ID)
	}

	var wg sync.WaitGroup
	errs := make(chan error, joiners)
	for _, requestID := range requests {
		wg.Add(1)
		go func(requestID string) {
			defer wg.Done()
			_, err := service.AcceptPendingRequest(ctx, familydomain.AcceptRequestInput{
				RequestID: requestID,
				UserID:    "admin",
				Accepted:  true,
			})
			errs <- err
		}(requestID)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	details, err := service.GetFamilyDetails(ctx, family.ID, "admin")
	require.NoError(t, err)
	assert.Len(t, details.Family.Members, joiners+1)
	assert.Empty(t, details.Family.PendingRequests)
	assert.Len(t, details.Members, joiners+1)
	for _, member := range details.Members {
		assert.Contains(t, member.Families, family.ID, member.ID)
	}
}

func TestPostgresCreateFamilyForUnknownCreatorRollsBack(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	ctx := context.Background()

	repo := pgfamily.NewPostgres(pg.DB)
	service := familydomain.NewService(repo, nopBlobs{}, logger.NewNop())

	_, err := service.CreateFamily(ctx, familydomain.CreateFamilyInput{
		Name:        "Ghost",
		Description: "no creator row",
		CreatorID:   "ghost",
	})
	require.Error(t, err)

	families, total, err := repo.ListFamilies(ctx, familydomain.FamilyFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, families)
}
