package handler

import (
	"time"

	familydomain "family-circle-go/internal/domain/family"
	userdomain "family-circle-go/internal/domain/user"
	"family-circle-go/pkg/pagination"
)

type familyResponse struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Image           *string   `json:"image"`
	ImageKey        *string   `json:"imageKey"`
	Creator         string    `json:"creator"`
	Members         []string  `json:"members"`
	PendingRequests []string  `json:"pendingRequests"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type familyDetailsResponse struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Description     string         `json:"description"`
	Image           *string        `json:"image"`
	ImageKey        *string        `json:"imageKey"`
	Creator         string         `json:"creator"`
	Members         []userResponse `json:"members"`
	PendingRequests []string       `json:"pendingRequests"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Email     *string   `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	AvatarURL *string   `json:"avatarUrl"`
	Family    []string  `json:"family"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type requestResponse struct {
	ID          string    `json:"id"`
	RequestType string    `json:"requestType"`
	User        string    `json:"user"`
	Family      string    `json:"family"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// pendingRequestResponse nests full user and family snapshots; each exposes
// its id under "id" like the request itself.
type pendingRequestResponse struct {
	ID          string         `json:"id"`
	RequestType string         `json:"requestType"`
	Status      string         `json:"status"`
	User        userResponse   `json:"user"`
	Family      familyResponse `json:"family"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

type pageResponse[T any] struct {
	Items       []T   `json:"items"`
	TotalCount  int64 `json:"totalCount"`
	Page        int   `json:"page"`
	PageSize    int   `json:"pageSize"`
	TotalPages  int   `json:"totalPages"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
}

func toFamilyResponse(family familydomain.Family) familyResponse {
	return familyResponse{
		ID:              family.ID,
		Name:            family.Name,
		Description:     family.Description,
		Image:           family.Image,
		ImageKey:        family.ImageKey,
		Creator:         family.CreatorID,
		Members:         nonNilIDs(family.Members),
		PendingRequests: nonNilIDs(family.PendingRequests),
		CreatedAt:       family.CreatedAt,
		UpdatedAt:       family.UpdatedAt,
	}
}

func toFamilyDetailsResponse(details familydomain.FamilyDetails) familyDetailsResponse {
	members := make([]userResponse, 0, len(details.Members))
	for _, member := range details.Members {
		members = append(members, toUserResponse(member))
	}
	family := details.Family
	return familyDetailsResponse{
		ID:              family.ID,
		Name:            family.Name,
		Description:     family.Description,
		Image:           family.Image,
		ImageKey:        family.ImageKey,
		Creator:         family.CreatorID,
		Members:         members,
		PendingRequests: nonNilIDs(family.PendingRequests),
		CreatedAt:       family.CreatedAt,
		UpdatedAt:       family.UpdatedAt,
	}
}

func toUserResponse(user userdomain.User) userResponse {
	return userResponse{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		AvatarURL: user.AvatarURL,
		Family:    nonNilIDs(user.Families),
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}

func toRequestResponse(request familydomain.Request) requestResponse {
	return requestResponse{
		ID:          request.ID,
		RequestType: string(request.RequestType),
		User:        request.UserID,
		Family:      request.FamilyID,
		Status:      string(request.Status),
		CreatedAt:   request.CreatedAt,
		UpdatedAt:   request.UpdatedAt,
	}
}

func toPendingRequestResponse(view familydomain.PendingRequestView) pendingRequestResponse {
	return pendingRequestResponse{
		ID:          view.Request.ID,
		RequestType: string(view.Request.RequestType),
		Status:      string(view.Request.Status),
		User:        toUserResponse(view.User),
		Family:      toFamilyResponse(view.Family),
		CreatedAt:   view.Request.CreatedAt,
		UpdatedAt:   view.Request.UpdatedAt,
	}
}

func toPageResponse[T, R any](page pagination.Page[T], fn func(T) R) pageResponse[R] {
	mapped := pagination.Map(page, fn)
	return pageResponse[R]{
		Items:       mapped.Items,
		TotalCount:  mapped.TotalCount,
		Page:        mapped.Page,
		PageSize:    mapped.PageSize,
		TotalPages:  mapped.TotalPages,
		HasNextPage: mapped.HasNextPage,
		HasPrevPage: mapped.HasPrevPage,
	}
}

func nonNilIDs(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
