package family

import (
	"context"

	userdomain "family-circle-go/internal/domain/user"
	"family-circle-go/pkg/pagination"
	"go.opentelemetry.io/otel/attribute"
)

func (s *Service) GetFamilyMembers(ctx context.Context, familyID, userID string, query pagination.Query) (page pagination.Page[userdomain.User], err error) {
	ctx, done := s.startOperation(ctx, "get_family_members", attribute.String("family.id", familyID))
	defer func() { done(err) }()

	membership, err := s.ValidateMembership(ctx, familyID, userID, MembershipOptions{})
	if err != nil {
		return pagination.Page[userdomain.User]{}, err
	}

	users, total, err := s.repo.ListUsersByIDs(ctx, membership.Family.Members, userFilterFromQuery(query))
	if err != nil {
		return pagination.Page[userdomain.User]{}, err
	}
	return pagination.New(users, total, query), nil
}

// GetFamilyDetails returns the family with members hydrated. A cached entry is
// served only while the stored family still has the same updatedAt and
// member list. Member profiles inside it may lag by up to the cache TTL.
func (s *Service) GetFamilyDetails(ctx context.Context, familyID, userID string) (details *FamilyDetails, err error) {
	ctx, done := s.startOperation(ctx, "get_family_details", attribute.String("family.id", familyID))
	defer func() { done(err) }()

	if cached, ok := s.cache.GetDetails(ctx, familyID); ok {
		membership, err := s.ValidateMembership(ctx, familyID, userID, MembershipOptions{})
		if err != nil {
			return nil, err
		}
		if cached.matches(membership.Family) {
			return cached, nil
		}
		// Written by a read that raced a commit.
		s.cache.Delete(ctx, familyID)
	}

	membership, err := s.ValidateMembership(ctx, familyID, userID, MembershipOptions{WithMembers: true})
	if err != nil {
		return nil, err
	}

	details = &FamilyDetails{Family: *membership.Family, Members: membership.Members}
	if details.Members == nil {
		details.Members = []userdomain.User{}
	}
	s.cache.SetDetails(ctx, details, s.cacheTTL)
	return details, nil
}

// GetUsersFamilies lists the families the user is a member of.
func (s *Service) GetUsersFamilies(ctx context.Context, userID string, query pagination.Query) (page pagination.Page[Family], err error) {
	ctx, done := s.startOperation(ctx, "get_users_families")
	defer func() { done(err) }()

	return s.listFamilies(ctx, familyFilterFromQuery(userID, query), query)
}

// GetFamiliesUserCanJoin lists every family, members' own included.
func (s *Service) GetFamiliesUserCanJoin(ctx context.Context, query pagination.Query) (page pagination.Page[Family], err error) {
	ctx, done := s.startOperation(ctx, "get_families_user_can_join")
	defer func() { done(err) }()

	return s.listFamilies(ctx, familyFilterFromQuery("", query), query)
}

func (s *Service) listFamilies(ctx context.Context, filter FamilyFilter, query pagination.Query) (pagination.Page[Family], error) {
	families, total, err := s.repo.ListFamilies(ctx, filter)
	if err != nil {
		return pagination.Page[Family]{}, err
	}
	return pagination.New(families, total, query), nil
}
