package family

import (
	"context"
	"errors"
	"strings"
	"time"

	familydomain "family-circle-go/internal/domain/family"
	userdomain "family-circle-go/internal/domain/user"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

type PostgresRepository struct {
	db *gorm.DB
}

func NewPostgres(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Transaction(ctx context.Context, fn func(familydomain.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&PostgresRepository{db: tx})
	})
}

func (r *PostgresRepository) GetFamilyByID(ctx context.Context, familyID string) (*familydomain.Family, error) {
	var family familydomain.Family
	if err := r.db.WithContext(ctx).Where("id = ?", familyID).First(&family).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, familydomain.ErrFamilyNotFound
		}
		return nil, err
	}
	return &family, nil
}

func (r *PostgresRepository) CreateFamily(ctx context.Context, family *familydomain.Family) error {
	if family.Members == nil {
		family.Members = pq.StringArray{}
	}
	if family.PendingRequests == nil {
		family.PendingRequests = pq.StringArray{}
	}
	return r.db.WithContext(ctx).Create(family).Error
}

func (r *PostgresRepository) UpdateFamilyDetails(ctx context.Context, family *familydomain.Family) error {
	result := r.db.WithContext(ctx).
		Model(&familydomain.Family{}).
		Where("id = ?", family.ID).
		Updates(map[string]interface{}{
			"name":        family.Name,
			"description": family.Description,
			"image":       family.Image,
			"image_key":   family.ImageKey,
			"updated_at":  time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return familydomain.ErrFamilyNotFound
	}
	return nil
}

func (r *PostgresRepository) AddFamilyMember(ctx context.Context, familyID, userID string) error {
	return r.execFamily(ctx, familyID,
		"UPDATE families SET members = CASE WHEN members @> ARRAY[?]::text[] THEN members ELSE array_append(members, ?) END, updated_at = ? WHERE id = ?",
		userID, userID, time.Now().UTC(), familyID,
	)
}

func (r *PostgresRepository) AddPendingRequest(ctx context.Context, familyID, requestID string) error {
	return r.execFamily(ctx, familyID,
		"UPDATE families SET pending_requests = array_append(pending_requests, ?), updated_at = ? WHERE id = ?",
		requestID, time.Now().UTC(), familyID,
	)
}

func (r *PostgresRepository) RemovePendingRequest(ctx context.Context, familyID, requestID string) error {
	return r.execFamily(ctx, familyID,
		"UPDATE families SET pending_requests = array_remove(pending_requests, ?), updated_at = ? WHERE id = ?",
		requestID, time.Now().UTC(), familyID,
	)
}

func (r *PostgresRepository) execFamily(ctx context.Context, familyID, query string, args ...interface{}) error {
	result := r.db.WithContext(ctx).Exec(query, args...)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return familydomain.ErrFamilyNotFound
	}
	return nil
}

func (r *PostgresRepository) ListFamilies(ctx context.Context, filter familydomain.FamilyFilter) ([]familydomain.Family, int64, error) {
	query := r.db.WithContext(ctx).Model(&familydomain.Family{})
	if filter.MemberID != "" {
		query = query.Where("members @> ARRAY[?]::text[]", filter.MemberID)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := likePattern(search)
		query = query.Where(`(name ILIKE ? ESCAPE '\' OR description ILIKE ? ESCAPE '\')`, pattern, pattern)
	}

	countQuery := query.Session(&gorm.Session{})
	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var families []familydomain.Family
	query = query.Order("created_at desc").Order("id desc")
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if err := query.Find(&families).Error; err != nil {
		return nil, 0, err
	}
	return families, total, nil
}

func (r *PostgresRepository) GetRequestByID(ctx context.Context, requestID string) (*familydomain.Request, error) {
	var request familydomain.Request
	if err := r.db.WithContext(ctx).Where("id = ?", requestID).First(&request).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, familydomain.ErrRequestNotFound
		}
		return nil, err
	}
	return &request, nil
}

func (r *PostgresRepository) CreateRequest(ctx context.Context, request *familydomain.Request) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *PostgresRepository) ResolveRequest(ctx context.Context, requestID string, status familydomain.RequestStatus) error {
	result := r.db.WithContext(ctx).
		Model(&familydomain.Request{}).
		Where("id = ? AND status = ?", requestID, familydomain.RequestStatusPending).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 1 {
		return nil
	}

	if _, err := r.GetRequestByID(ctx, requestID); err != nil {
		return err
	}
	return familydomain.ErrRequestAlreadyResolved
}

func (r *PostgresRepository) ListPendingRequestsForUser(ctx context.Context, userID string) ([]familydomain.PendingRequestView, error) {
	type pendingRow struct {
		ID          string    `gorm:"column:id"`
		RequestType string    `gorm:"column:request_type"`
		Status      string    `gorm:"column:status"`
		UserID      string    `gorm:"column:user_id"`
		FamilyID    string    `gorm:"column:family_id"`
		CreatedAt   time.Time `gorm:"column:created_at"`
		UpdatedAt   time.Time `gorm:"column:updated_at"`

		FamilyName            string         `gorm:"column:family_name"`
		FamilyDescription     string         `gorm:"column:family_description"`
		FamilyImage           *string        `gorm:"column:family_image"`
		FamilyImageKey        *string        `gorm:"column:family_image_key"`
		FamilyCreatorID       string         `gorm:"column:family_creator_id"`
		FamilyMembers         pq.StringArray `gorm:"column:family_members;type:text[]"`
		FamilyPendingRequests pq.StringArray `gorm:"column:family_pending_requests;type:text[]"`
		FamilyCreatedAt       time.Time      `gorm:"column:family_created_at"`
		FamilyUpdatedAt       time.Time      `gorm:"column:family_updated_at"`

		UserEmail     *string        `gorm:"column:user_email"`
		UserFirstName string         `gorm:"column:user_first_name"`
		UserLastName  string         `gorm:"column:user_last_name"`
		UserAvatarURL *string        `gorm:"column:user_avatar_url"`
		UserFamilies  pq.StringArray `gorm:"column:user_families;type:text[]"`
		UserCreatedAt time.Time      `gorm:"column:user_created_at"`
		UserUpdatedAt time.Time      `gorm:"column:user_updated_at"`
	}

	var rows []pendingRow
	if err := r.db.WithContext(ctx).
		Table("family_requests").
		Select(`family_requests.id, family_requests.request_type, family_requests.status,
			family_requests.user_id, family_requests.family_id,
			family_requests.created_at, family_requests.updated_at,
			families.name AS family_name, families.description AS family_description,
			families.image AS family_image, families.image_key AS family_image_key,
			families.creator_id AS family_creator_id, families.members AS family_members,
			families.pending_requests AS family_pending_requests,
			families.created_at AS family_created_at, families.updated_at AS family_updated_at,
			users.email AS user_email, users.first_name AS user_first_name,
			users.last_name AS user_last_name, users.avatar_url AS user_avatar_url,
			users.families AS user_families,
			users.created_at AS user_created_at, users.updated_at AS user_updated_at`).
		Joins("join families on families.id = family_requests.family_id").
		Joins("join users on users.id = family_requests.user_id").
		Where("family_requests.status = ?", familydomain.RequestStatusPending).
		Where("(family_requests.user_id = ? OR families.creator_id = ?)", userID, userID).
		Order("family_requests.created_at desc").
		Order("family_requests.id desc").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	views := make([]familydomain.PendingRequestView, 0, len(rows))
	for _, row := range rows {
		views = append(views, familydomain.PendingRequestView{
			Request: familydomain.Request{
				ID:          row.ID,
				RequestType: familydomain.RequestType(row.RequestType),
				UserID:      row.UserID,
				FamilyID:    row.FamilyID,
				Status:      familydomain.RequestStatus(row.Status),
				CreatedAt:   row.CreatedAt,
				UpdatedAt:   row.UpdatedAt,
			},
			Family: familydomain.Family{
				ID:              row.FamilyID,
				Name:            row.FamilyName,
				Description:     row.FamilyDescription,
				Image:           row.FamilyImage,
				ImageKey:        row.FamilyImageKey,
				CreatorID:       row.FamilyCreatorID,
				Members:         row.FamilyMembers,
				PendingRequests: row.FamilyPendingRequests,
				CreatedAt:       row.FamilyCreatedAt,
				UpdatedAt:       row.FamilyUpdatedAt,
			},
			User: userdomain.User{
				ID:        row.UserID,
				Email:     row.UserEmail,
				FirstName: row.UserFirstName,
				LastName:  row.UserLastName,
				AvatarURL: row.UserAvatarURL,
				Families:  row.UserFamilies,
				CreatedAt: row.UserCreatedAt,
				UpdatedAt: row.UserUpdatedAt,
			},
		})
	}
	return views, nil
}

func (r *PostgresRepository) GetUserByID(ctx context.Context, userID string) (*userdomain.User, error) {
	var user userdomain.User
	if err := r.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, familydomain.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *PostgresRepository) ListUsersByIDs(ctx context.Context, userIDs []string, filter familydomain.UserFilter) ([]userdomain.User, int64, error) {
	if len(userIDs) == 0 {
		return []userdomain.User{}, 0, nil
	}

	query := r.db.WithContext(ctx).Model(&userdomain.User{}).Where("id = ANY(?)", pq.StringArray(userIDs))
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := likePattern(search)
		query = query.Where(`(first_name ILIKE ? ESCAPE '\' OR last_name ILIKE ? ESCAPE '\' OR email ILIKE ? ESCAPE '\')`, pattern, pattern, pattern)
	}

	countQuery := query.Session(&gorm.Session{})
	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []userdomain.User
	query = query.Order("created_at desc").Order("id desc")
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if err := query.Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *PostgresRepository) AddUserFamily(ctx context.Context, userID, familyID string) error {
	result := r.db.WithContext(ctx).Exec(
		"UPDATE users SET families = CASE WHEN families @> ARRAY[?]::text[] THEN families ELSE array_append(families, ?) END, updated_at = ? WHERE id = ?",
		familyID, familyID, time.Now().UTC(), userID,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return familydomain.ErrUserNotFound
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(search string) string {
	return "%" + likeEscaper.Replace(search) + "%"
}
