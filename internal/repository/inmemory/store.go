// Package inmemory keeps families, requests and users in process memory.
// It backs STORE_DRIVER=memory and the service tests.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	familydomain "family-circle-go/internal/domain/family"
	userdomain "family-circle-go/internal/domain/user"
	"github.com/lib/pq"
)

type data struct {
	families map[string]familydomain.Family
	requests map[string]familydomain.Request
	users    map[string]userdomain.User
}

type shared struct {
	// txMu serializes writers. A transaction holds it for its whole
	// duration so its snapshot can be restored on rollback.
	txMu sync.Mutex
	mu   sync.RWMutex
	data data
	now  func() time.Time
}

// Store implements family.Repository and user.Repository.
type Store struct {
	s    *shared
	inTx bool
}

func NewStore() *Store {
	return &Store{s: &shared{
		data: data{
			families: make(map[string]familydomain.Family),
			requests: make(map[string]familydomain.Request),
			users:    make(map[string]userdomain.User),
		},
		now: time.Now,
	}}
}

func (r *Store) Transaction(ctx context.Context, fn func(familydomain.Repository) error) error {
	if r.inTx {
		return fn(r)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.s.txMu.Lock()
	defer r.s.txMu.Unlock()

	r.s.mu.RLock()
	snapshot := r.s.data.clone()
	r.s.mu.RUnlock()

	if err := fn(&Store{s: r.s, inTx: true}); err != nil {
		r.s.mu.Lock()
		r.s.data = snapshot
		r.s.mu.Unlock()
		return err
	}
	return nil
}

// write runs fn under the data lock, taking the writer lock too when the
// call is not already part of a transaction.
func (r *Store) write(fn func(d *data) error) error {
	if !r.inTx {
		r.s.txMu.Lock()
		defer r.s.txMu.Unlock()
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return fn(&r.s.data)
}

func (r *Store) read(fn func(d *data)) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	fn(&r.s.data)
}

func (r *Store) GetFamilyByID(_ context.Context, familyID string) (*familydomain.Family, error) {
	var (
		family familydomain.Family
		ok     bool
	)
	r.read(func(d *data) {
		family, ok = d.families[familyID]
		family = cloneFamily(family)
	})
	if !ok {
		return nil, familydomain.ErrFamilyNotFound
	}
	return &family, nil
}

func (r *Store) CreateFamily(_ context.Context, family *familydomain.Family) error {
	return r.write(func(d *data) error {
		if _, exists := d.families[family.ID]; exists {
			return fmt.Errorf("family %s already exists", family.ID)
		}
		stored := cloneFamily(*family)
		if stored.Members == nil {
			stored.Members = pq.StringArray{}
		}
		if stored.PendingRequests == nil {
			stored.PendingRequests = pq.StringArray{}
		}
		d.families[family.ID] = stored
		return nil
	})
}

func (r *Store) UpdateFamilyDetails(_ context.Context, family *familydomain.Family) error {
	return r.write(func(d *data) error {
		stored, ok := d.families[family.ID]
		if !ok {
			return familydomain.ErrFamilyNotFound
		}
		stored.Name = family.Name
		stored.Description = family.Description
		stored.Image = cloneString(family.Image)
		stored.ImageKey = cloneString(family.ImageKey)
		stored.UpdatedAt = r.s.now().UTC()
		d.families[family.ID] = stored
		return nil
	})
}

func (r *Store) AddFamilyMember(_ context.Context, familyID, userID string) error {
	return r.updateFamily(familyID, func(family *familydomain.Family) {
		family.Members = addToSet(family.Members, userID)
	})
}

func (r *Store) AddPendingRequest(_ context.Context, familyID, requestID string) error {
	return r.updateFamily(familyID, func(family *familydomain.Family) {
		family.PendingRequests = append(family.PendingRequests, requestID)
	})
}

func (r *Store) RemovePendingRequest(_ context.Context, familyID, requestID string) error {
	return r.updateFamily(familyID, func(family *familydomain.Family) {
		kept := pq.StringArray{}
		for _, id := range family.PendingRequests {
			if id != requestID {
				kept = append(kept, id)
			}
		}
		family.PendingRequests = kept
	})
}

func (r *Store) updateFamily(familyID string, fn func(*familydomain.Family)) error {
	return r.write(func(d *data) error {
		stored, ok := d.families[familyID]
		if !ok {
			return familydomain.ErrFamilyNotFound
		}
		stored = cloneFamily(stored)
		fn(&stored)
		stored.UpdatedAt = r.s.now().UTC()
		d.families[familyID] = stored
		return nil
	})
}

func (r *Store) ListFamilies(_ context.Context, filter familydomain.FamilyFilter) ([]familydomain.Family, int64, error) {
	var matched []familydomain.Family
	r.read(func(d *data) {
		for _, family := range d.families {
			if filter.MemberID != "" && !family.HasMember(filter.MemberID) {
				continue
			}
			if !matchesAny(filter.Search, family.Name, family.Description) {
				continue
			}
			matched = append(matched, cloneFamily(family))
		}
	})

	sort.Slice(matched, func(i, j int) bool {
		return newerFirst(matched[i].CreatedAt, matched[j].CreatedAt, matched[i].ID, matched[j].ID)
	})
	total := int64(len(matched))
	return paginate(matched, filter.Offset, filter.Limit), total, nil
}

func (r *Store) GetRequestByID(_ context.Context, requestID string) (*familydomain.Request, error) {
	var (
		request familydomain.Request
		ok      bool
	)
	r.read(func(d *data) {
		request, ok = d.requests[requestID]
	})
	if !ok {
		return nil, familydomain.ErrRequestNotFound
	}
	return &request, nil
}

func (r *Store) CreateRequest(_ context.Context, request *familydomain.Request) error {
	return r.write(func(d *data) error {
		if _, exists := d.requests[request.ID]; exists {
			return fmt.Errorf("request %s already exists", request.ID)
		}
		d.requests[request.ID] = *request
		return nil
	})
}

func (r *Store) ResolveRequest(_ context.Context, requestID string, status familydomain.RequestStatus) error {
	return r.write(func(d *data) error {
		stored, ok := d.requests[requestID]
		if !ok {
			return familydomain.ErrRequestNotFound
		}
		if !stored.Pending() {
			return familydomain.ErrRequestAlreadyResolved
		}
		stored.Status = status
		stored.UpdatedAt = r.s.now().UTC()
		d.requests[requestID] = stored
		return nil
	})
}

func (r *Store) ListPendingRequestsForUser(_ context.Context, userID string) ([]familydomain.PendingRequestView, error) {
	var views []familydomain.PendingRequestView
	r.read(func(d *data) {
		for _, request := range d.requests {
			if !request.Pending() {
				continue
			}
			family, ok := d.families[request.FamilyID]
			if !ok {
				continue
			}
			subject, ok := d.users[request.UserID]
			if !ok {
				continue
			}
			if request.UserID != userID && family.CreatorID != userID {
				continue
			}
			views = append(views, familydomain.PendingRequestView{
				Request: request,
				Family:  cloneFamily(family),
				User:    cloneUser(subject),
			})
		}
	})

	sort.Slice(views, func(i, j int) bool {
		return newerFirst(views[i].Request.CreatedAt, views[j].Request.CreatedAt, views[i].Request.ID, views[j].Request.ID)
	})
	return views, nil
}

func (r *Store) GetUserByID(_ context.Context, userID string) (*userdomain.User, error) {
	var (
		user userdomain.User
		ok   bool
	)
	r.read(func(d *data) {
		user, ok = d.users[userID]
		user = cloneUser(user)
	})
	if !ok {
		return nil, familydomain.ErrUserNotFound
	}
	return &user, nil
}

func (r *Store) ListUsersByIDs(_ context.Context, userIDs []string, filter familydomain.UserFilter) ([]userdomain.User, int64, error) {
	var matched []userdomain.User
	r.read(func(d *data) {
		seen := make(map[string]struct{}, len(userIDs))
		for _, id := range userIDs {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			user, ok := d.users[id]
			if !ok {
				continue
			}
			email := ""
			if user.Email != nil {
				email = *user.Email
			}
			if !matchesAny(filter.Search, user.FirstName, user.LastName, email) {
				continue
			}
			matched = append(matched, cloneUser(user))
		}
	})

	sort.Slice(matched, func(i, j int) bool {
		return newerFirst(matched[i].CreatedAt, matched[j].CreatedAt, matched[i].ID, matched[j].ID)
	})
	total := int64(len(matched))
	return paginate(matched, filter.Offset, filter.Limit), total, nil
}

func (r *Store) AddUserFamily(_ context.Context, userID, familyID string) error {
	return r.write(func(d *data) error {
		stored, ok := d.users[userID]
		if !ok {
			return familydomain.ErrUserNotFound
		}
		stored = cloneUser(stored)
		stored.Families = addToSet(stored.Families, familyID)
		stored.UpdatedAt = r.s.now().UTC()
		d.users[userID] = stored
		return nil
	})
}

// UpsertProfile creates the user on first sight. Later calls refresh only
// the non-empty profile fields.
func (r *Store) UpsertProfile(_ context.Context, profile userdomain.Profile) error {
	return r.write(func(d *data) error {
		now := r.s.now().UTC()
		stored, ok := d.users[profile.UserID]
		if !ok {
			stored = userdomain.User{
				ID:        profile.UserID,
				Families:  pq.StringArray{},
				CreatedAt: now,
			}
		}
		if profile.Email != "" {
			stored.Email = cloneString(&profile.Email)
		}
		if profile.FirstName != "" {
			stored.FirstName = profile.FirstName
		}
		if profile.LastName != "" {
			stored.LastName = profile.LastName
		}
		if profile.AvatarURL != "" {
			stored.AvatarURL = cloneString(&profile.AvatarURL)
		}
		stored.UpdatedAt = now
		d.users[profile.UserID] = stored
		return nil
	})
}

func (d data) clone() data {
	cloned := data{
		families: make(map[string]familydomain.Family, len(d.families)),
		requests: make(map[string]familydomain.Request, len(d.requests)),
		users:    make(map[string]userdomain.User, len(d.users)),
	}
	for id, family := range d.families {
		cloned.families[id] = cloneFamily(family)
	}
	for id, request := range d.requests {
		cloned.requests[id] = request
	}
	for id, user := range d.users {
		cloned.users[id] = cloneUser(user)
	}
	return cloned
}

func cloneFamily(family familydomain.Family) familydomain.Family {
	if family.Members != nil {
		family.Members = append(pq.StringArray{}, family.Members...)
	}
	if family.PendingRequests != nil {
		family.PendingRequests = append(pq.StringArray{}, family.PendingRequests...)
	}
	family.Image = cloneString(family.Image)
	family.ImageKey = cloneString(family.ImageKey)
	return family
}

func cloneUser(user userdomain.User) userdomain.User {
	if user.Families != nil {
		user.Families = append(pq.StringArray{}, user.Families...)
	}
	user.Email = cloneString(user.Email)
	user.AvatarURL = cloneString(user.AvatarURL)
	return user
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}

func addToSet(ids pq.StringArray, id string) pq.StringArray {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

func matchesAny(search string, values ...string) bool {
	search = strings.ToLower(strings.TrimSpace(search))
	if search == "" {
		return true
	}
	for _, value := range values {
		if strings.Contains(strings.ToLower(value), search) {
			return true
		}
	}
	return false
}

func newerFirst(a, b time.Time, idA, idB string) bool {
	if !a.Equal(b) {
		return a.After(b)
	}
	return idA > idB
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset < 0 || offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
