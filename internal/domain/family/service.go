package family

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"family-circle-go/internal/domain/storage"
	"family-circle-go/pkg/logger"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	familyImagePrefix = "family-image-"

	msgCreateFamilyFailed = "Unable to create family at this moment, please try again later."
	msgAddMembersFailed   = "Unable to add members at this moment, please try again later."
	msgJoinRequestFailed  = "Unable to send request at this moment, please try again later."
	msgResolveFailed      = "Unable to treat request at this moment, please try again later."
)

// Recorder receives workflow outcomes. internal/metrics implements it with
// Prometheus.
type Recorder interface {
	FamilyCreated()
	RequestCreated(requestType RequestType)
	RequestResolved(requestType RequestType, status RequestStatus)
	TransactionFailed(op string)
	ObserveOperation(op string, start time.Time, err error)
}

type noopRecorder struct{}

func (noopRecorder) FamilyCreated()                             {}
func (noopRecorder) RequestCreated(RequestType)                 {}
func (noopRecorder) RequestResolved(RequestType, RequestStatus) {}
func (noopRecorder) TransactionFailed(string)                   {}
func (noopRecorder) ObserveOperation(string, time.Time, error)  {}

type Option func(*Service)

func WithCache(cache Cache, ttl time.Duration) Option {
	return func(s *Service) {
		if cache != nil {
			s.cache = cache
			s.cacheTTL = ttl
		}
	}
}

func WithRecorder(recorder Recorder) Option {
	return func(s *Service) {
		if recorder != nil {
			s.metrics = recorder
		}
	}
}

type Service struct {
	repo     Repository
	blobs    storage.BlobStore
	log      logger.Logger
	cache    Cache
	cacheTTL time.Duration
	metrics  Recorder
	tracer   trace.Tracer
	now      func() time.Time
}

func NewService(repo Repository, blobs storage.BlobStore, log logger.Logger, opts ...Option) *Service {
	if log == nil {
		log = logger.NewNop()
	}
	s := &Service{
		repo:    repo,
		blobs:   blobs,
		log:     log,
		cache:   noopCache{},
		metrics: noopRecorder{},
		tracer:  otel.Tracer("family-circle-go/internal/domain/family"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) CreateFamily(ctx context.Context, input CreateFamilyInput) (family *Family, err error) {
	ctx, done := s.startOperation(ctx, "create_family", attribute.String("user.id", input.CreatorID))
	defer func() { done(err) }()

	name := strings.TrimSpace(input.Name)
	description := strings.TrimSpace(input.Description)
	if name == "" {
		return nil, invalidInput("name is required")
	}
	if description == "" {
		return nil, invalidInput("description is required")
	}
	if input.CreatorID == "" {
		return nil, invalidInput("creator is required")
	}

	// Uploads cannot be rolled back, so they happen before the transaction.
	var uploaded *storage.Object
	if input.Image != nil {
		object, err := s.upload(ctx, input.Image)
		if err != nil {
			return nil, err
		}
		uploaded = &object
	}

	now := s.now().UTC()
	created := &Family{
		ID:              uuid.NewString(),
		Name:            name,
		Description:     description,
		CreatorID:       input.CreatorID,
		Members:         pq.StringArray{input.CreatorID},
		PendingRequests: pq.StringArray{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if uploaded != nil {
		created.Image = &uploaded.URL
		created.ImageKey = &uploaded.Key
	}

	uow := newUnitOfWork(s.repo)
	uow.stage(func(ctx context.Context, tx Repository) error {
		return tx.CreateFamily(ctx, created)
	})
	uow.stage(func(ctx context.Context, tx Repository) error {
		return tx.AddUserFamily(ctx, input.CreatorID, created.ID)
	})

	if err := uow.commit(ctx); err != nil {
		if uploaded != nil {
			if delErr := s.blobs.Delete(ctx, uploaded.Key); delErr != nil {
				s.logFor(ctx).Warn("families.create: orphaned image", "key", uploaded.Key, "err", delErr)
			}
		}
		return nil, s.transactionFailed(ctx, "create_family", msgCreateFamilyFailed, err, "user_id", input.CreatorID)
	}

	s.metrics.FamilyCreated()
	return created, nil
}

// CheckUserInFamily confirms targetUserID is listed in the family's members.
// The acting user must be a member of the family.
func (s *Service) CheckUserInFamily(ctx context.Context, targetUserID, familyID, actingUserID string) (err error) {
	ctx, done := s.startOperation(ctx, "check_user_in_family", attribute.String("family.id", familyID))
	defer func() { done(err) }()

	membership, err := s.ValidateMembership(ctx, familyID, actingUserID, MembershipOptions{})
	if err != nil {
		return err
	}
	if !membership.Family.HasMember(targetUserID) {
		return fmt.Errorf("%w: %s", ErrMemberNotFound, targetUserID)
	}
	return nil
}

// EditFamilyDetails applies a partial update. Any member may edit.
func (s *Service) EditFamilyDetails(ctx context.Context, input EditFamilyInput) (family *Family, err error) {
	ctx, done := s.startOperation(ctx, "edit_family_details", attribute.String("family.id", input.FamilyID))
	defer func() { done(err) }()

	membership, err := s.ValidateMembership(ctx, input.FamilyID, input.UserID, MembershipOptions{})
	if err != nil {
		return nil, err
	}
	updated := membership.Family.Clone()

	if input.Name != nil {
		if name := strings.TrimSpace(*input.Name); name != "" {
			updated.Name = name
		}
	}
	if input.Description != nil {
		if description := strings.TrimSpace(*input.Description); description != "" {
			updated.Description = description
		}
	}

	if input.Image != nil {
		if updated.ImageKey != nil && *updated.ImageKey != "" {
			// A failed delete keeps the old handles so the blob stays
			// reachable for a later cleanup.
			if err := s.blobs.Delete(ctx, *updated.ImageKey); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
				s.logFor(ctx).Warn("families.edit: old image not deleted", "family_id", updated.ID, "key", *updated.ImageKey, "err", err)
			} else {
				updated.Image = nil
				updated.ImageKey = nil
			}
		}

		object, err := s.upload(ctx, input.Image)
		if err != nil {
			if updated.ImageKey == nil && membership.Family.ImageKey != nil {
				s.clearImage(ctx, membership.Family)
			}
			return nil, err
		}
		updated.Image = &object.URL
		updated.ImageKey = &object.Key
	}

	updated.UpdatedAt = s.now().UTC()
	if err := s.repo.UpdateFamilyDetails(ctx, updated); err != nil {
		return nil, err
	}
	s.cache.Delete(ctx, updated.ID)

	return updated, nil
}

// clearImage drops handles that point at a deleted blob.
func (s *Service) clearImage(ctx context.Context, family *Family) {
	cleared := family.Clone()
	cleared.Image = nil
	cleared.ImageKey = nil
	if err := s.repo.UpdateFamilyDetails(ctx, cleared); err != nil {
		s.logFor(ctx).InternalError("families.edit: clear deleted image", err, "family_id", family.ID)
		return
	}
	s.cache.Delete(ctx, family.ID)
}

func (s *Service) upload(ctx context.Context, file *storage.File) (storage.Object, error) {
	object, err := s.blobs.Upload(ctx, file.Data, familyImagePrefix+file.Name, file.ContentType)
	if err != nil {
		s.logFor(ctx).InternalError("families.upload: failed", err, "filename", file.Name)
		return storage.Object{}, ErrUploadFailed
	}
	return object, nil
}

func (s *Service) logFor(ctx context.Context) logger.Logger {
	return logger.FromContext(ctx, s.log)
}

// transactionFailed logs the cause and hides it behind a retryable message.
// Business errors raised inside the transaction pass through unchanged.
func (s *Service) transactionFailed(ctx context.Context, op, message string, err error, args ...any) error {
	if isBusinessError(err) {
		return err
	}
	s.metrics.TransactionFailed(op)
	s.logFor(ctx).InternalError("families."+op+": transaction failed", err, args...)
	return &TransactionError{Op: op, Message: message, cause: err}
}

func isBusinessError(err error) bool {
	for _, target := range []error{
		ErrRequestAlreadyResolved,
		ErrRequestNotFound,
		ErrFamilyNotFound,
		ErrUserNotFound,
		ErrAlreadyMember,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (s *Service) startOperation(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := s.now()
	ctx, span := s.tracer.Start(ctx, "family."+op, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		s.metrics.ObserveOperation(op, start, err)
	}
}
