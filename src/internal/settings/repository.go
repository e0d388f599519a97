package settings

import (
	"context"
	"errors"

	"chathub-presence-svc/src/clients"
	"chathub-presence-svc/src/internal/models"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Repository reads the "hide online status" privacy flag owned by the user
// settings service. Richer visibility rules (friends-only and the like) would
// hang off this seam.
type Repository interface {
	Hidden(ctx context.Context, userID string) (bool, error)
	BatchHidden(ctx context.Context, userIDs []string) (map[string]bool, error)
}

type privacyDoc struct {
	UserID string `bson:"user_id"`
	Hidden bool   `bson:"hide_online_status"`
}

type repository struct {
	collection *mongo.Collection
}

func NewRepository(db *clients.MongoDB, collectionName string) Repository {
	return &repository{collection: db.Database.Collection(collectionName)}
}

func (r *repository) Hidden(ctx context.Context, userID string) (bool, error) {
	var doc privacyDoc
	opts := options.FindOne().SetProjection(bson.M{"user_id": 1, "hide_online_status": 1})

	err := r.collection.FindOne(ctx, bson.M{"user_id": userID}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Unknown users are simply not hidden.
			return false, nil
		}
		logrus.WithError(err).WithField("user_id", userID).Error("Failed to read privacy flag")
		return false, models.ErrDatabaseQuery
	}

	return doc.Hidden, nil
}

func (r *repository) BatchHidden(ctx context.Context, userIDs []string) (map[string]bool, error) {
	if len(userIDs) == 0 {
		return map[string]bool{}, nil
	}

	filter := bson.M{"user_id": bson.M{"$in": userIDs}}
	opts := options.Find().SetProjection(bson.M{"user_id": 1, "hide_online_status": 1})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		logrus.WithError(err).WithField("count", len(userIDs)).Error("Failed batch privacy read")
		return nil, models.ErrDatabaseQuery
	}
	defer cursor.Close(ctx)

	result := make(map[string]bool, len(userIDs))
	for cursor.Next(ctx) {
		var doc privacyDoc
		if err := cursor.Decode(&doc); err != nil {
			logrus.WithError(err).Error("Failed to decode privacy flag")
			continue
		}
		result[doc.UserID] = doc.Hidden
	}
	if err := cursor.Err(); err != nil {
		logrus.WithError(err).Error("Cursor error on batch privacy read")
		return nil, models.ErrDatabaseQuery
	}

	return result, nil
}
