package presence

import (
	"context"
	"errors"
	"time"

	"chathub-presence-svc/src/clients"
	"chathub-presence-svc/src/internal/models"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Repository interface {
	Get(ctx context.Context, userID string) (*UserPresenceState, error)

	// BatchGet reads many users in a single $in query. Users without a
	// document are simply absent from the result map.
	BatchGet(ctx context.Context, userIDs []string) (map[string]*UserPresenceState, error)

	// Apply upserts the user's durable state. Offline transitions also stamp
	// last_active_at with the finalization time.
	Apply(ctx context.Context, userID string, online bool, at time.Time) error
}

type repository struct {
	collection *mongo.Collection
}

func NewRepository(db *clients.MongoDB, collectionName string) Repository {
	return &repository{collection: db.Database.Collection(collectionName)}
}

func (r *repository) Get(ctx context.Context, userID string) (*UserPresenceState, error) {
	var state UserPresenceState
	filter := bson.M{"user_id": userID}

	err := r.collection.FindOne(ctx, filter).Decode(&state)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrRecordNotFound
		}
		logrus.WithError(err).WithField("user_id", userID).Error("Failed to get presence state")
		return nil, models.ErrDatabaseQuery
	}

	return &state, nil
}

func (r *repository) BatchGet(ctx context.Context, userIDs []string) (map[string]*UserPresenceState, error) {
	if len(userIDs) == 0 {
		return map[string]*UserPresenceState{}, nil
	}

	filter := bson.M{"user_id": bson.M{"$in": userIDs}}
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		logrus.WithError(err).WithField("count", len(userIDs)).Error("Failed batch presence read")
		return nil, models.ErrDatabaseQuery
	}
	defer cursor.Close(ctx)

	result := make(map[string]*UserPresenceState, len(userIDs))
	for cursor.Next(ctx) {
		var state UserPresenceState
		if err := cursor.Decode(&state); err != nil {
			logrus.WithError(err).Error("Failed to decode presence state")
			continue
		}
		result[state.UserID] = &state
	}
	if err := cursor.Err(); err != nil {
		logrus.WithError(err).Error("Cursor error on batch presence read")
		return nil, models.ErrDatabaseQuery
	}

	return result, nil
}

func (r *repository) Apply(ctx context.Context, userID string, online bool, at time.Time) error {
	set := bson.M{"is_online": online}
	if !online {
		set["last_active_at"] = at
	}

	update := bson.M{"$set": set}
	opts := options.Update().SetUpsert(true)

	_, err := r.collection.UpdateOne(ctx, bson.M{"user_id": userID}, update, opts)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"user_id": userID,
			"online":  online,
		}).Error("Failed to apply presence transition")
		return models.ErrDatabaseUpdate
	}

	logrus.WithFields(logrus.Fields{
		"user_id": userID,
		"online":  online,
	}).Debug("Presence state applied")
	return nil
}
