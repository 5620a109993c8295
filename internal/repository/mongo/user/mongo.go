package user

import (
	"context"
	"fmt"
	"time"

	domain "family-circle-go/internal/domain/user"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoRepository struct {
	users *mongo.Collection
}

func NewMongo(db *mongo.Database) *MongoRepository {
	return &MongoRepository{users: db.Collection("users")}
}

// UpsertProfile creates the user with an empty family list on first sight.
// Empty profile fields never overwrite stored values.
func (r *MongoRepository) UpsertProfile(ctx context.Context, profile domain.Profile) error {
	now := time.Now().UTC()
	set := bson.M{"updatedAt": now}
	setOnInsert := bson.M{
		"family":    bson.A{},
		"createdAt": now,
	}

	for field, value := range map[string]string{
		"email":     profile.Email,
		"firstName": profile.FirstName,
		"lastName":  profile.LastName,
		"avatarUrl": profile.AvatarURL,
	} {
		switch {
		case value != "":
			set[field] = value
		case field == "firstName" || field == "lastName":
			setOnInsert[field] = ""
		}
	}

	_, err := r.users.UpdateOne(ctx,
		bson.M{"_id": profile.UserID},
		bson.M{"$set": set, "$setOnInsert": setOnInsert},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}
