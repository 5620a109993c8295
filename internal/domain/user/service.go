package user

import (
	"context"
	"fmt"
	"strings"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// UpsertProfile creates the user document on first sight and refreshes the
// identity-owned fields afterwards. The family collection is never touched.
func (s *Service) UpsertProfile(ctx context.Context, profile Profile) error {
	profile.UserID = strings.TrimSpace(profile.UserID)
	if profile.UserID == "" {
		return fmt.Errorf("user id is required")
	}

	profile.Email = strings.ToLower(strings.TrimSpace(profile.Email))
	profile.FirstName = strings.TrimSpace(profile.FirstName)
	profile.LastName = strings.TrimSpace(profile.LastName)
	profile.AvatarURL = strings.TrimSpace(profile.AvatarURL)

	return s.repo.UpsertProfile(ctx, profile)
}
