package user

import (
	"context"
	"time"

	domain "family-circle-go/internal/domain/user"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresRepository struct {
	db *gorm.DB
}

func NewPostgres(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// UpsertProfile inserts the user with an empty family list, or refreshes the
// identity fields the profile carries. families is never written here.
func (r *PostgresRepository) UpsertProfile(ctx context.Context, profile domain.Profile) error {
	now := time.Now().UTC()
	user := domain.User{
		ID:        profile.UserID,
		FirstName: profile.FirstName,
		LastName:  profile.LastName,
		Families:  pq.StringArray{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if profile.Email != "" {
		user.Email = &profile.Email
	}
	if profile.AvatarURL != "" {
		user.AvatarURL = &profile.AvatarURL
	}

	updates := map[string]interface{}{
		"updated_at": now,
	}
	if profile.Email != "" {
		updates["email"] = profile.Email
	}
	if profile.FirstName != "" {
		updates["first_name"] = profile.FirstName
	}
	if profile.LastName != "" {
		updates["last_name"] = profile.LastName
	}
	if profile.AvatarURL != "" {
		updates["avatar_url"] = profile.AvatarURL
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.Assignments(updates),
		}).
		Create(&user).Error
}
