package family

import (
	"context"
	"errors"

	userdomain "family-circle-go/internal/domain/user"
	"golang.org/x/sync/errgroup"
)

// ValidateMembership loads the user and the family and confirms the family
// is listed in the user's families. Both loads run concurrently; failures
// are still reported as user missing, then not a member, then family
// missing.
func (s *Service) ValidateMembership(ctx context.Context, familyID, userID string, opts MembershipOptions) (*Membership, error) {
	return validateMembership(ctx, s.repo, familyID, userID, opts)
}

func validateMembership(ctx context.Context, repo Repository, familyID, userID string, opts MembershipOptions) (*Membership, error) {
	var (
		user      *userdomain.User
		family    *Family
		userErr   error
		familyErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		user, userErr = repo.GetUserByID(gctx, userID)
		return ignoreNotFound(userErr, ErrUserNotFound)
	})
	g.Go(func() error {
		family, familyErr = repo.GetFamilyByID(gctx, familyID)
		return ignoreNotFound(familyErr, ErrFamilyNotFound)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if userErr != nil {
		return nil, userErr
	}
	if !user.BelongsTo(familyID) {
		return nil, ErrNotFamilyMember
	}
	if familyErr != nil {
		return nil, familyErr
	}

	membership := &Membership{User: user, Family: family}

	if opts.WithMembers {
		members, _, err := repo.ListUsersByIDs(ctx, family.Members, UserFilter{})
		if err != nil {
			return nil, err
		}
		membership.Members = members
	}
	if opts.WithUserFamilies {
		families, _, err := repo.ListFamilies(ctx, FamilyFilter{MemberID: user.ID})
		if err != nil {
			return nil, err
		}
		membership.UserFamilies = families
	}

	return membership, nil
}

// ignoreNotFound keeps the errgroup from cancelling the sibling load on an
// expected miss; the miss is reported after both loads finish.
func ignoreNotFound(err, notFound error) error {
	if err == nil || errors.Is(err, notFound) {
		return nil
	}
	return err
}
