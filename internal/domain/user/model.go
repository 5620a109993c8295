package user

import (
	"strings"
	"time"

	"github.com/lib/pq"
)

// User is the account document. Families holds the ids of every family
// the user belongs to, in join order.
type User struct {
	ID        string         `gorm:"type:text;primaryKey" bson:"_id"`
	Email     *string        `gorm:"type:text" bson:"email,omitempty"`
	FirstName string         `gorm:"type:text;not null;default:''" bson:"firstName"`
	LastName  string         `gorm:"type:text;not null;default:''" bson:"lastName"`
	AvatarURL *string        `gorm:"type:text" bson:"avatarUrl,omitempty"`
	Families  pq.StringArray `gorm:"type:text[];not null;default:'{}'" bson:"family"`
	CreatedAt time.Time      `gorm:"autoCreateTime" bson:"createdAt"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" bson:"updatedAt"`
}

func (u *User) BelongsTo(familyID string) bool {
	for _, id := range u.Families {
		if id == familyID {
			return true
		}
	}
	return false
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Profile is what the identity service tells us about the caller.
type Profile struct {
	UserID    string
	Email     string
	FirstName string
	LastName  string
	AvatarURL string
}
