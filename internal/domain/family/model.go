package family

import (
	"slices"
	"time"

	"family-circle-go/internal/domain/storage"
	userdomain "family-circle-go/internal/domain/user"
	"family-circle-go/pkg/pagination"
	"github.com/lib/pq"
)

type RequestType string

const (
	// RequestTypeUserRequest is a user asking to join. Only the family
	// creator may resolve it.
	RequestTypeUserRequest RequestType = "user_request"
	// RequestTypeFamilyInvitation is the family inviting a user. Only the
	// invited user may resolve it.
	RequestTypeFamilyInvitation RequestType = "family_invitation"
)

func (t RequestType) Valid() bool {
	return t == RequestTypeUserRequest || t == RequestTypeFamilyInvitation
}

type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusAccepted RequestStatus = "accepted"
	RequestStatusDeclined RequestStatus = "declined"
)

func (s RequestStatus) Terminal() bool {
	return s == RequestStatusAccepted || s == RequestStatusDeclined
}

// Family is the group document. Members and PendingRequests hold ids only;
// hydrated views are FamilyDetails and PendingRequestView.
type Family struct {
	ID              string         `gorm:"type:text;primaryKey" bson:"_id"`
	Name            string         `gorm:"type:text;not null" bson:"name"`
	Description     string         `gorm:"type:text;not null" bson:"description"`
	Image           *string        `gorm:"type:text" bson:"image"`
	ImageKey        *string        `gorm:"type:text" bson:"imageKey"`
	CreatorID       string         `gorm:"type:text;not null;index" bson:"creator"`
	Members         pq.StringArray `gorm:"type:text[];not null;default:'{}'" bson:"members"`
	PendingRequests pq.StringArray `gorm:"type:text[];not null;default:'{}'" bson:"pendingRequests"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" bson:"createdAt"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" bson:"updatedAt"`
}

func (f *Family) HasMember(userID string) bool {
	return containsID(f.Members, userID)
}

func (f *Family) HasPendingRequest(requestID string) bool {
	return containsID(f.PendingRequests, requestID)
}

func (f *Family) IsCreator(userID string) bool {
	return f.CreatorID == userID
}

// Clone returns a copy whose reference slices do not alias the original.
func (f *Family) Clone() *Family {
	clone := *f
	clone.Members = append(pq.StringArray{}, f.Members...)
	clone.PendingRequests = append(pq.StringArray{}, f.PendingRequests...)
	return &clone
}

// Request is a join request or an invitation. It is created pending and
// moves exactly once to accepted or declined.
type Request struct {
	ID          string        `gorm:"type:text;primaryKey" bson:"_id"`
	RequestType RequestType   `gorm:"type:varchar(32);not null" bson:"requestType"`
	UserID      string        `gorm:"type:text;not null;index" bson:"user"`
	FamilyID    string        `gorm:"type:text;not null;index" bson:"family"`
	Status      RequestStatus `gorm:"type:varchar(16);not null;default:'pending';index" bson:"status"`
	CreatedAt   time.Time     `gorm:"autoCreateTime" bson:"createdAt"`
	UpdatedAt   time.Time     `gorm:"autoUpdateTime" bson:"updatedAt"`
}

func (Request) TableName() string {
	return "family_requests"
}

func (r *Request) Pending() bool {
	return r.Status == RequestStatusPending
}

// FamilyDetails is a family with its members hydrated.
type FamilyDetails struct {
	Family  Family
	Members []userdomain.User
}

func (d *FamilyDetails) matches(current *Family) bool {
	return current != nil &&
		d.Family.UpdatedAt.Equal(current.UpdatedAt) &&
		slices.Equal(d.Family.Members, current.Members)
}

// PendingRequestView is a pending request joined with the family and user
// it refers to.
type PendingRequestView struct {
	Request Request
	Family  Family
	User    userdomain.User
}

type CreateFamilyInput struct {
	Name        string
	Description string
	CreatorID   string
	Image       *storage.File
}

// EditFamilyInput carries a partial update. Nil fields are left untouched.
type EditFamilyInput struct {
	FamilyID    string
	UserID      string
	Name        *string
	Description *string
	Image       *storage.File
}

type AcceptRequestInput struct {
	RequestID string
	UserID    string
	Accepted  bool
}

// MembershipOptions selects what the membership check hydrates on top of
// the bare documents.
type MembershipOptions struct {
	WithMembers      bool
	WithUserFamilies bool
}

// Membership is the result of a successful membership check.
type Membership struct {
	User   *userdomain.User
	Family *Family
	// Members is set only with MembershipOptions.WithMembers.
	Members []userdomain.User
	// UserFamilies is set only with MembershipOptions.WithUserFamilies.
	UserFamilies []Family
}

// FamilyFilter narrows family listings. Zero values mean "no constraint".
type FamilyFilter struct {
	MemberID string
	Search   string
	Limit    int
	Offset   int
}

// UserFilter narrows member listings. Limit 0 returns every match.
type UserFilter struct {
	Search string
	Limit  int
	Offset int
}

func userFilterFromQuery(query pagination.Query) UserFilter {
	query = query.Normalize()
	return UserFilter{Search: query.Search, Limit: query.Limit(), Offset: query.Offset()}
}

func familyFilterFromQuery(memberID string, query pagination.Query) FamilyFilter {
	query = query.Normalize()
	return FamilyFilter{MemberID: memberID, Search: query.Search, Limit: query.Limit(), Offset: query.Offset()}
}

func containsID(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
