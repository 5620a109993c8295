package family

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// AddFamilyMembers invites every id in usersToAdd that is not already a
// member. Only the family creator may invite. The invitations and the
// pendingRequests entries are written together or not at all.
func (s *Service) AddFamilyMembers(ctx context.Context, familyID, adminID string, usersToAdd []string) (family *Family, err error) {
	ctx, done := s.startOperation(ctx, "add_family_members",
		attribute.String("family.id", familyID),
		attribute.Int("invites.requested", len(usersToAdd)),
	)
	defer func() { done(err) }()

	membership, err := s.ValidateMembership(ctx, familyID, adminID, MembershipOptions{})
	if err != nil {
		return nil, err
	}
	if !membership.Family.IsCreator(adminID) {
		return nil, ErrNotFamilyAdmin
	}

	ids := uniqueIDs(usersToAdd)
	if len(ids) == 0 {
		return nil, invalidInput("usersToAdd must contain at least one user id")
	}

	snapshot := membership.Family.Clone()
	now := s.now().UTC()

	uow := newUnitOfWork(s.repo)
	invited := 0
	for _, userID := range ids {
		if snapshot.HasMember(userID) {
			continue
		}
		request := &Request{
			ID:          uuid.NewString(),
			RequestType: RequestTypeFamilyInvitation,
			UserID:      userID,
			FamilyID:    snapshot.ID,
			Status:      RequestStatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		uow.stage(func(ctx context.Context, tx Repository) error {
			return tx.CreateRequest(ctx, request)
		})
		uow.stage(func(ctx context.Context, tx Repository) error {
			return tx.AddPendingRequest(ctx, snapshot.ID, request.ID)
		})
		snapshot.PendingRequests = append(snapshot.PendingRequests, request.ID)
		invited++
	}
	if invited == 0 {
		return snapshot, nil
	}

	uow.onCommit(func(ctx context.Context) {
		s.cache.Delete(ctx, snapshot.ID)
		for i := 0; i < invited; i++ {
			s.metrics.RequestCreated(RequestTypeFamilyInvitation)
		}
	})
	if err := uow.commit(ctx); err != nil {
		return nil, s.transactionFailed(ctx, "add_family_members", msgAddMembersFailed, err,
			"family_id", familyID, "user_id", adminID, "invites", invited)
	}

	return snapshot, nil
}

// RequestToJoinFamily files a pending user_request. A second pending
// request from the same user is not rejected here; resolution is the gate.
func (s *Service) RequestToJoinFamily(ctx context.Context, familyID, userID string) (request *Request, err error) {
	ctx, done := s.startOperation(ctx, "request_to_join_family", attribute.String("family.id", familyID))
	defer func() { done(err) }()

	family, err := s.repo.GetFamilyByID(ctx, familyID)
	if err != nil {
		return nil, err
	}
	if family.HasMember(userID) {
		return nil, ErrAlreadyMember
	}

	now := s.now().UTC()
	created := &Request{
		ID:          uuid.NewString(),
		RequestType: RequestTypeUserRequest,
		UserID:      userID,
		FamilyID:    family.ID,
		Status:      RequestStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	uow := newUnitOfWork(s.repo)
	uow.stage(func(ctx context.Context, tx Repository) error {
		return tx.CreateRequest(ctx, created)
	})
	uow.stage(func(ctx context.Context, tx Repository) error {
		return tx.AddPendingRequest(ctx, family.ID, created.ID)
	})
	uow.onCommit(func(ctx context.Context) {
		s.cache.Delete(ctx, family.ID)
		s.metrics.RequestCreated(RequestTypeUserRequest)
	})
	if err := uow.commit(ctx); err != nil {
		return nil, s.transactionFailed(ctx, "request_to_join_family", msgJoinRequestFailed, err,
			"family_id", familyID, "user_id", userID)
	}

	return created, nil
}

// GetPendingRequests lists pending invitations addressed to the user and
// pending join requests for families the user created.
func (s *Service) GetPendingRequests(ctx context.Context, userID string) (views []PendingRequestView, err error) {
	ctx, done := s.startOperation(ctx, "get_pending_requests")
	defer func() { done(err) }()

	views, err = s.repo.ListPendingRequestsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if views == nil {
		views = []PendingRequestView{}
	}
	return views, nil
}

// AcceptPendingRequest resolves a pending request. Invitations are resolved
// by the invited user, join requests by the family creator. The status
// change, the membership links and the pendingRequests removal commit
// together.
func (s *Service) AcceptPendingRequest(ctx context.Context, input AcceptRequestInput) (family *Family, err error) {
	ctx, done := s.startOperation(ctx, "accept_pending_request",
		attribute.String("request.id", input.RequestID),
		attribute.Bool("request.accepted", input.Accepted),
	)
	defer func() { done(err) }()

	request, err := s.repo.GetRequestByID(ctx, input.RequestID)
	if err != nil {
		return nil, err
	}
	if !request.Pending() {
		return nil, ErrRequestAlreadyResolved
	}

	current, err := s.repo.GetFamilyByID(ctx, request.FamilyID)
	if err != nil {
		return nil, err
	}
	if current.HasMember(request.UserID) {
		return nil, ErrAlreadyMember
	}

	switch request.RequestType {
	case RequestTypeFamilyInvitation:
		if request.UserID != input.UserID {
			return nil, ErrNotRequestInvitee
		}
	case RequestTypeUserRequest:
		if !current.IsCreator(input.UserID) {
			return nil, ErrNotFamilyAdmin
		}
	default:
		return nil, invalidInput("unknown request type " + string(request.RequestType))
	}

	status := RequestStatusDeclined
	if input.Accepted {
		status = RequestStatusAccepted
		if _, err := s.repo.GetUserByID(ctx, request.UserID); err != nil {
			return nil, err
		}
	}

	snapshot := current.Clone()
	uow := newUnitOfWork(s.repo)
	uow.stage(func(ctx context.Context, tx Repository) error {
		return tx.ResolveRequest(ctx, request.ID, status)
	})
	if status == RequestStatusAccepted {
		uow.stage(func(ctx context.Context, tx Repository) error {
			return tx.AddUserFamily(ctx, request.UserID, snapshot.ID)
		})
		uow.stage(func(ctx context.Context, tx Repository) error {
			return tx.AddFamilyMember(ctx, snapshot.ID, request.UserID)
		})
		snapshot.Members = append(snapshot.Members, request.UserID)
	}
	uow.stage(func(ctx context.Context, tx Repository) error {
		return tx.RemovePendingRequest(ctx, snapshot.ID, request.ID)
	})
	snapshot.PendingRequests = removeID(snapshot.PendingRequests, request.ID)

	uow.onCommit(func(ctx context.Context) {
		s.cache.Delete(ctx, snapshot.ID)
		s.metrics.RequestResolved(request.RequestType, status)
	})
	if err := uow.commit(ctx); err != nil {
		return nil, s.transactionFailed(ctx, "accept_pending_request", msgResolveFailed, err,
			"request_id", request.ID, "family_id", snapshot.ID, "user_id", input.UserID)
	}

	return snapshot, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}

func removeID(ids []string, id string) []string {
	result := make([]string, 0, len(ids))
	for _, candidate := range ids {
		if candidate != id {
			result = append(result, candidate)
		}
	}
	return result
}
