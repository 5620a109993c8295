package handler

import (
	"errors"
	"net/http"
	"strings"

	familydomain "family-circle-go/internal/domain/family"
	"family-circle-go/internal/transport/httpserver/middleware"
	"family-circle-go/pkg/logger"
	"github.com/go-chi/chi/v5"
)

type editFamilyRequest struct {
	FamilyID    string  `json:"familyId"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type addFamilyMembersRequest struct {
	FamilyID   string   `json:"familyId"`
	UsersToAdd []string `json:"usersToAdd"`
}

type acceptRequestRequest struct {
	RequestID string    `json:"requestId"`
	Accepted  looseBool `json:"accepted"`
}

func (h *Handlers) CreateFamily(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	if !isMultipart(r) {
		writeError(w, http.StatusBadRequest, "multipart form body is required")
		return
	}
	if err := h.parseMultipart(w, r); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	image, err := h.readImage(r)
	if err != nil {
		h.writeImageError(w, r, "families.create", err, "user_id", user.ID)
		return
	}

	result, err := h.Families.CreateFamily(r.Context(), familydomain.CreateFamilyInput{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		CreatorID:   user.ID,
		Image:       image,
	})
	if err != nil {
		h.writeDomainError(w, r, "families.create", err, http.StatusForbidden, "user_id", user.ID)
		return
	}

	writeSuccess(w, http.StatusCreated, msgRequestSuccessful, toFamilyResponse(*result))
}

func (h *Handlers) CheckUserInFamily(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	targetID := chi.URLParam(r, "userId")
	familyID := chi.URLParam(r, "familyId")
	err := h.Families.CheckUserInFamily(r.Context(), targetID, familyID, user.ID)
	if err != nil {
		h.writeDomainError(w, r, "families.user_in_family", err, http.StatusForbidden,
			"user_id", user.ID, "target_user_id", targetID, "family_id", familyID)
		return
	}

	writeSuccess(w, http.StatusOK, msgUserFound, nil)
}

func (h *Handlers) EditFamilyDetails(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	input := familydomain.EditFamilyInput{UserID: user.ID}
	if isMultipart(r) {
		if err := h.parseMultipart(w, r); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart body")
			return
		}
		input.FamilyID = r.FormValue("familyId")
		input.Name = formValue(r, "name")
		input.Description = formValue(r, "description")

		image, err := h.readImage(r)
		if err != nil {
			h.writeImageError(w, r, "families.edit", err, "user_id", user.ID)
			return
		}
		input.Image = image
	} else {
		var req editFamilyRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		input.FamilyID = req.FamilyID
		input.Name = req.Name
		input.Description = req.Description
	}

	input.FamilyID = strings.TrimSpace(input.FamilyID)
	if input.FamilyID == "" {
		writeError(w, http.StatusBadRequest, "familyId is required")
		return
	}

	result, err := h.Families.EditFamilyDetails(r.Context(), input)
	if err != nil {
		h.writeDomainError(w, r, "families.edit", err, http.StatusForbidden,
			"user_id", user.ID, "family_id", input.FamilyID)
		return
	}

	writeSuccess(w, http.StatusOK, msgRequestSuccessful, toFamilyResponse(*result))
}

func (h *Handlers) AddFamilyMembers(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	var req addFamilyMembersRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.FamilyID = strings.TrimSpace(req.FamilyID)
	if req.FamilyID == "" {
		writeError(w, http.StatusBadRequest, "familyId is required")
		return
	}
	if len(req.UsersToAdd) == 0 {
		writeError(w, http.StatusBadRequest, "usersToAdd must not be empty")
		return
	}

	result, err := h.Families.AddFamilyMembers(r.Context(), req.FamilyID, user.ID, req.UsersToAdd)
	if err != nil {
		h.writeDomainError(w, r, "families.add_members", err, http.StatusForbidden,
			"user_id", user.ID, "family_id", req.FamilyID)
		return
	}

	writeSuccess(w, http.StatusOK, msgRequestSuccessful, toFamilyResponse(*result))
}

func (h *Handlers) ListPendingRequests(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	views, err := h.Families.GetPendingRequests(r.Context(), user.ID)
	if err != nil {
		h.writeDomainError(w, r, "families.pending_requests", err, http.StatusForbidden, "user_id", user.ID)
		return
	}

	items := make([]pendingRequestResponse, 0, len(views))
	for _, view := range views {
		items = append(items, toPendingRequestResponse(view))
	}
	writeSuccess(w, http.StatusOK, msgRequestSuccessful, items)
}

func (h *Handlers) GetFamiliesUserCanJoin(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	query, err := parsePageQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := h.Families.GetFamiliesUserCanJoin(r.Context(), query)
	if err != nil {
		h.writeDomainError(w, r, "families.joinable", err, http.StatusForbidden, "user_id", user.ID)
		return
	}

	writeSuccess(w, http.StatusOK, msgRequestSuccessful, toPageResponse(page, toFamilyResponse))
}

func (h *Handlers) GetFamilyMembers(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	familyID := strings.TrimSpace(r.URL.Query().Get("familyId"))
	if familyID == "" {
		writeError(w, http.StatusBadRequest, "familyId is required")
		return
	}
	query, err := parsePageQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := h.Families.GetFamilyMembers(r.Context(), familyID, user.ID, query)
	if err != nil {
		h.writeDomainError(w, r, "families.members", err, http.StatusForbidden,
			"user_id", user.ID, "family_id", familyID)
		return
	}

	writeSuccess(w, http.StatusOK, msgRequestSuccessful, toPageResponse(page, toUserResponse))
}

func (h *Handlers) GetFamilyDetails(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	familyID := chi.URLParam(r, "id")
	details, err := h.Families.GetFamilyDetails(r.Context(), familyID, user.ID)
	if err != nil {
		h.writeDomainError(w, r, "families.details", err, http.StatusForbidden,
			"user_id", user.ID, "family_id", familyID)
		return
	}

	writeSuccess(w, http.StatusOK, msgRequestSuccessful, toFamilyDetailsResponse(*details))
}

func (h *Handlers) RequestToJoinFamily(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	familyID := chi.URLParam(r, "familyId")
	request, err := h.Families.RequestToJoinFamily(r.Context(), familyID, user.ID)
	if err != nil {
		h.writeDomainError(w, r, "families.request_to_join", err, http.StatusForbidden,
			"user_id", user.ID, "family_id", familyID)
		return
	}

	writeSuccess(w, http.StatusOK, msgRequestSuccessful, toRequestResponse(*request))
}

func (h *Handlers) AcceptPendingRequest(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	var req acceptRequestRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.RequestID = strings.TrimSpace(req.RequestID)
	if req.RequestID == "" {
		writeError(w, http.StatusBadRequest, "requestId is required")
		return
	}
	if !req.Accepted.Set {
		writeError(w, http.StatusBadRequest, "accepted is required")
		return
	}

	result, err := h.Families.AcceptPendingRequest(r.Context(), familydomain.AcceptRequestInput{
		RequestID: req.RequestID,
		UserID:    user.ID,
		Accepted:  req.Accepted.Value,
	})
	if err != nil {
		h.writeDomainError(w, r, "families.accept_request", err, http.StatusUnauthorized,
			"user_id", user.ID, "request_id", req.RequestID)
		return
	}

	writeSuccess(w, http.StatusOK, msgRequestSuccessful, toFamilyResponse(*result))
}

func (h *Handlers) GetUsersFamilies(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	query, err := parsePageQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := h.Families.GetUsersFamilies(r.Context(), user.ID, query)
	if err != nil {
		h.writeDomainError(w, r, "families.users_families", err, http.StatusForbidden, "user_id", user.ID)
		return
	}

	writeSuccess(w, http.StatusOK, msgRequestSuccessful, toPageResponse(page, toFamilyResponse))
}

// writeDomainError maps service errors onto the envelope. adminStatus is the
// status used for ErrNotFamilyAdmin, which differs between endpoints.
func (h *Handlers) writeDomainError(w http.ResponseWriter, r *http.Request, op string, err error, adminStatus int, args ...any) {
	log := logger.FromContext(r.Context(), h.log)
	var txErr *familydomain.TransactionError
	switch {
	case errors.Is(err, familydomain.ErrUserNotFound),
		errors.Is(err, familydomain.ErrFamilyNotFound),
		errors.Is(err, familydomain.ErrRequestNotFound),
		errors.Is(err, familydomain.ErrMemberNotFound):
		log.BusinessError(op+": not found", err, args...)
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, familydomain.ErrNotFamilyMember),
		errors.Is(err, familydomain.ErrAlreadyMember),
		errors.Is(err, familydomain.ErrRequestAlreadyResolved):
		log.BusinessError(op+": conflict", err, args...)
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, familydomain.ErrNotFamilyAdmin):
		log.BusinessError(op+": not family admin", err, args...)
		writeError(w, adminStatus, err.Error())
	case errors.Is(err, familydomain.ErrNotRequestInvitee):
		log.BusinessError(op+": not invitee", err, args...)
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, familydomain.ErrInvalidInput):
		log.BusinessError(op+": invalid input", err, args...)
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &txErr):
		writeError(w, http.StatusInternalServerError, txErr.Message)
	case errors.Is(err, familydomain.ErrUploadFailed):
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		log.InternalError(op+": unexpected error", err, args...)
		writeError(w, http.StatusInternalServerError, msgInternalError)
	}
}

func (h *Handlers) writeImageError(w http.ResponseWriter, r *http.Request, op string, err error, args ...any) {
	log := logger.FromContext(r.Context(), h.log)
	if errors.Is(err, errImageTooLarge) {
		log.BusinessError(op+": image too large", err, args...)
		writeError(w, http.StatusRequestEntityTooLarge, "image exceeds the maximum allowed size")
		return
	}
	log.BusinessError(op+": invalid image", err, args...)
	writeError(w, http.StatusBadRequest, err.Error())
}

func formValue(r *http.Request, key string) *string {
	if r.MultipartForm == nil {
		return nil
	}
	values, ok := r.MultipartForm.Value[key]
	if !ok || len(values) == 0 {
		return nil
	}
	value := values[0]
	return &value
}
