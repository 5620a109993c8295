package family

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	familydomain "family-circle-go/internal/domain/family"
	userdomain "family-circle-go/internal/domain/user"
	"github.com/lib/pq"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	familiesCollection = "families"
	requestsCollection = "family_requests"
	usersCollection    = "users"
)

// MongoRepository stores each entity in its own collection. Writes that
// must agree run inside a session transaction, which needs a replica set.
type MongoRepository struct {
	client   *mongo.Client
	families *mongo.Collection
	requests *mongo.Collection
	users    *mongo.Collection
	session  mongo.Session
}

func NewMongo(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		client:   db.Client(),
		families: db.Collection(familiesCollection),
		requests: db.Collection(requestsCollection),
		users:    db.Collection(usersCollection),
	}
}

// EnsureIndexes creates the indexes the queries below rely on.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	if _, err := r.families.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "members", Value: 1}}},
		{Keys: bson.D{{Key: "creator", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	}); err != nil {
		return fmt.Errorf("families indexes: %w", err)
	}
	if _, err := r.requests.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "family", Value: 1}, {Key: "status", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("requests indexes: %w", err)
	}
	return nil
}

func (r *MongoRepository) Transaction(ctx context.Context, fn func(familydomain.Repository) error) error {
	if r.session != nil {
		return fn(r)
	}

	session, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		tx := *r
		tx.session = sc
		return nil, fn(&tx)
	})
	return err
}

// ctx binds the transaction session, if any, to the caller's context.
func (r *MongoRepository) ctx(ctx context.Context) context.Context {
	if r.session == nil {
		return ctx
	}
	return mongo.NewSessionContext(ctx, r.session)
}

func (r *MongoRepository) GetFamilyByID(ctx context.Context, familyID string) (*familydomain.Family, error) {
	var family familydomain.Family
	if err := r.families.FindOne(r.ctx(ctx), bson.M{"_id": familyID}).Decode(&family); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, familydomain.ErrFamilyNotFound
		}
		return nil, fmt.Errorf("find family: %w", err)
	}
	return &family, nil
}

func (r *MongoRepository) CreateFamily(ctx context.Context, family *familydomain.Family) error {
	if family.Members == nil {
		family.Members = pq.StringArray{}
	}
	if family.PendingRequests == nil {
		family.PendingRequests = pq.StringArray{}
	}
	if _, err := r.families.InsertOne(r.ctx(ctx), family); err != nil {
		return fmt.Errorf("insert family: %w", err)
	}
	return nil
}

func (r *MongoRepository) UpdateFamilyDetails(ctx context.Context, family *familydomain.Family) error {
	return r.updateFamily(ctx, family.ID, bson.M{
		"$set": bson.M{
			"name":        family.Name,
			"description": family.Description,
			"image":       family.Image,
			"imageKey":    family.ImageKey,
			"updatedAt":   time.Now().UTC(),
		},
	})
}

func (r *MongoRepository) AddFamilyMember(ctx context.Context, familyID, userID string) error {
	return r.updateFamily(ctx, familyID, bson.M{
		"$addToSet": bson.M{"members": userID},
		"$set":      bson.M{"updatedAt": time.Now().UTC()},
	})
}

func (r *MongoRepository) AddPendingRequest(ctx context.Context, familyID, requestID string) error {
	return r.updateFamily(ctx, familyID, bson.M{
		"$push": bson.M{"pendingRequests": requestID},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	})
}

func (r *MongoRepository) RemovePendingRequest(ctx context.Context, familyID, requestID string) error {
	return r.updateFamily(ctx, familyID, bson.M{
		"$pull": bson.M{"pendingRequests": requestID},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	})
}

func (r *MongoRepository) updateFamily(ctx context.Context, familyID string, update bson.M) error {
	result, err := r.families.UpdateOne(r.ctx(ctx), bson.M{"_id": familyID}, update)
	if err != nil {
		return fmt.Errorf("update family: %w", err)
	}
	if result.MatchedCount == 0 {
		return familydomain.ErrFamilyNotFound
	}
	return nil
}

func (r *MongoRepository) ListFamilies(ctx context.Context, filter familydomain.FamilyFilter) ([]familydomain.Family, int64, error) {
	query := bson.M{}
	if filter.MemberID != "" {
		query["members"] = filter.MemberID
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		query["$or"] = bson.A{
			bson.M{"name": containsRegex(search)},
			bson.M{"description": containsRegex(search)},
		}
	}

	total, err := r.families.CountDocuments(r.ctx(ctx), query)
	if err != nil {
		return nil, 0, fmt.Errorf("count families: %w", err)
	}

	opts := pageOptions(filter.Offset, filter.Limit)
	cursor, err := r.families.Find(r.ctx(ctx), query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("find families: %w", err)
	}
	families := []familydomain.Family{}
	if err := cursor.All(r.ctx(ctx), &families); err != nil {
		return nil, 0, fmt.Errorf("decode families: %w", err)
	}
	return families, total, nil
}

func (r *MongoRepository) GetRequestByID(ctx context.Context, requestID string) (*familydomain.Request, error) {
	var request familydomain.Request
	if err := r.requests.FindOne(r.ctx(ctx), bson.M{"_id": requestID}).Decode(&request); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, familydomain.ErrRequestNotFound
		}
		return nil, fmt.Errorf("find request: %w", err)
	}
	return &request, nil
}

func (r *MongoRepository) CreateRequest(ctx context.Context, request *familydomain.Request) error {
	if _, err := r.requests.InsertOne(r.ctx(ctx), request); err != nil {
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

func (r *MongoRepository) ResolveRequest(ctx context.Context, requestID string, status familydomain.RequestStatus) error {
	result, err := r.requests.UpdateOne(r.ctx(ctx),
		bson.M{"_id": requestID, "status": familydomain.RequestStatusPending},
		bson.M{"$set": bson.M{"status": status, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("resolve request: %w", err)
	}
	if result.MatchedCount == 1 {
		return nil
	}

	if _, err := r.GetRequestByID(ctx, requestID); err != nil {
		return err
	}
	return familydomain.ErrRequestAlreadyResolved
}

type pendingDoc struct {
	familydomain.Request `bson:",inline"`
	Family               familydomain.Family `bson:"familyDoc"`
	User                 userdomain.User     `bson:"userDoc"`
}

func (r *MongoRepository) ListPendingRequestsForUser(ctx context.Context, userID string) ([]familydomain.PendingRequestView, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"status": familydomain.RequestStatusPending}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         familiesCollection,
			"localField":   "family",
			"foreignField": "_id",
			"as":           "familyDoc",
		}}},
		{{Key: "$unwind", Value: "$familyDoc"}},
		{{Key: "$match", Value: bson.M{"$or": bson.A{
			bson.M{"user": userID},
			bson.M{"familyDoc.creator": userID},
		}}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         usersCollection,
			"localField":   "user",
			"foreignField": "_id",
			"as":           "userDoc",
		}}},
		{{Key: "$unwind", Value: "$userDoc"}},
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}}},
	}

	cursor, err := r.requests.Aggregate(r.ctx(ctx), pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate pending requests: %w", err)
	}
	var docs []pendingDoc
	if err := cursor.All(r.ctx(ctx), &docs); err != nil {
		return nil, fmt.Errorf("decode pending requests: %w", err)
	}

	views := make([]familydomain.PendingRequestView, 0, len(docs))
	for _, doc := range docs {
		views = append(views, familydomain.PendingRequestView{
			Request: doc.Request,
			Family:  doc.Family,
			User:    doc.User,
		})
	}
	return views, nil
}

func (r *MongoRepository) GetUserByID(ctx context.Context, userID string) (*userdomain.User, error) {
	var user userdomain.User
	if err := r.users.FindOne(r.ctx(ctx), bson.M{"_id": userID}).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, familydomain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

func (r *MongoRepository) ListUsersByIDs(ctx context.Context, userIDs []string, filter familydomain.UserFilter) ([]userdomain.User, int64, error) {
	if len(userIDs) == 0 {
		return []userdomain.User{}, 0, nil
	}

	query := bson.M{"_id": bson.M{"$in": userIDs}}
	if search := strings.TrimSpace(filter.Search); search != "" {
		query["$or"] = bson.A{
			bson.M{"firstName": containsRegex(search)},
			bson.M{"lastName": containsRegex(search)},
			bson.M{"email": containsRegex(search)},
		}
	}

	total, err := r.users.CountDocuments(r.ctx(ctx), query)
	if err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	cursor, err := r.users.Find(r.ctx(ctx), query, pageOptions(filter.Offset, filter.Limit))
	if err != nil {
		return nil, 0, fmt.Errorf("find users: %w", err)
	}
	users := []userdomain.User{}
	if err := cursor.All(r.ctx(ctx), &users); err != nil {
		return nil, 0, fmt.Errorf("decode users: %w", err)
	}
	return users, total, nil
}

func (r *MongoRepository) AddUserFamily(ctx context.Context, userID, familyID string) error {
	result, err := r.users.UpdateOne(r.ctx(ctx),
		bson.M{"_id": userID},
		bson.M{
			"$addToSet": bson.M{"family": familyID},
			"$set":      bson.M{"updatedAt": time.Now().UTC()},
		},
	)
	if err != nil {
		return fmt.Errorf("update user families: %w", err)
	}
	if result.MatchedCount == 0 {
		return familydomain.ErrUserNotFound
	}
	return nil
}

func containsRegex(search string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(search), "$options": "i"}
}

func pageOptions(offset, limit int) *options.FindOptions {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	if offset > 0 {
		opts.SetSkip(int64(offset))
	}
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return opts
}
