package family

import (
	"context"

	userdomain "family-circle-go/internal/domain/user"
)

// Repository is the entity store for families, requests and users. All
// three share one Transaction so a unit of work can span them.
//
// Reference-array writes (AddFamilyMember, AddPendingRequest,
// RemovePendingRequest, AddUserFamily) must be atomic field operations on
// the stored document, not read-modify-write of the whole document.
type Repository interface {
	Transaction(ctx context.Context, fn func(Repository) error) error

	GetFamilyByID(ctx context.Context, familyID string) (*Family, error)
	CreateFamily(ctx context.Context, family *Family) error
	UpdateFamilyDetails(ctx context.Context, family *Family) error
	AddFamilyMember(ctx context.Context, familyID, userID string) error
	AddPendingRequest(ctx context.Context, familyID, requestID string) error
	RemovePendingRequest(ctx context.Context, familyID, requestID string) error
	ListFamilies(ctx context.Context, filter FamilyFilter) ([]Family, int64, error)

	GetRequestByID(ctx context.Context, requestID string) (*Request, error)
	CreateRequest(ctx context.Context, request *Request) error
	// ResolveRequest moves a pending request to status. It returns
	// ErrRequestAlreadyResolved if the stored request is no longer pending.
	ResolveRequest(ctx context.Context, requestID string, status RequestStatus) error
	ListPendingRequestsForUser(ctx context.Context, userID string) ([]PendingRequestView, error)

	GetUserByID(ctx context.Context, userID string) (*userdomain.User, error)
	ListUsersByIDs(ctx context.Context, userIDs []string, filter UserFilter) ([]userdomain.User, int64, error)
	AddUserFamily(ctx context.Context, userID, familyID string) error
}
