package notification

import (
	"context"
	"time"

	"go-hrms/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store persists notification records. Every method scoped to a recipient
// must only touch that recipient's records.
type Store interface {
	Create(ctx context.Context, n *Notification) error
	CreateMany(ctx context.Context, ns []*Notification) error
	FindPaged(ctx context.Context, recipientID string, filter ListFilter) ([]Notification, int64, error)
	CountUnread(ctx context.Context, recipientID string) (int64, error)
	// UpdateReadFlag marks the recipient's unread records as read; a nil ids
	// slice means all of them. It returns the number of records changed.
	UpdateReadFlag(ctx context.Context, recipientID string, ids []primitive.ObjectID) (int64, error)
	Delete(ctx context.Context, id primitive.ObjectID, recipientID string) (bool, error)
	DeleteOlderThanRead(ctx context.Context, cutoff time.Time) (int64, error)
}

type MongoRepository struct {
	collection *mongo.Collection
	now        func() time.Time
}

func NewNotificationRepository(db *database.MongodbDB) *MongoRepository {
	return &MongoRepository{
		collection: db.DB.Collection("notifications"),
		now:        time.Now,
	}
}

// EnsureIndexes creates the indexes behind the per-recipient listing and the retention cleanup.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "recipient_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "recipient_id", Value: 1}, {Key: "is_read", Value: 1}}},
		{Keys: bson.D{{Key: "is_read", Value: 1}, {Key: "created_at", Value: 1}}},
	})
	return err
}

func (r *MongoRepository) Create(ctx context.Context, n *Notification) error {
	n.CreatedAt = r.now().UTC()
	n.IsRead = false
	n.ReadAt = nil
	result, err := r.collection.InsertOne(ctx, n)
	if err != nil {
		return err
	}
	n.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *MongoRepository) CreateMany(ctx context.Context, ns []*Notification) error {
	if len(ns) == 0 {
		return nil
	}

	now := r.now().UTC()
	docs := make([]interface{}, len(ns))
	for i, n := range ns {
		n.ID = primitive.NewObjectID()
		n.CreatedAt = now
		n.IsRead = false
		n.ReadAt = nil
		docs[i] = n
	}

	_, err := r.collection.InsertMany(ctx, docs)
	return err
}

func (r *MongoRepository) FindPaged(ctx context.Context, recipientID string, filter ListFilter) ([]Notification, int64, error) {
	filter.normalize()

	query := bson.M{"recipient_id": recipientID}
	if filter.IsRead != nil {
		query["is_read"] = *filter.IsRead
	}
	if filter.Category != "" {
		query["category"] = filter.Category
	}
	if filter.Type != "" {
		query["type"] = filter.Type
	}

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip((filter.Page - 1) * filter.PageSize).
		SetLimit(filter.PageSize)

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	notifications := []Notification{}
	if err = cursor.All(ctx, &notifications); err != nil {
		return nil, 0, err
	}

	return notifications, total, nil
}

func (r *MongoRepository) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{
		"recipient_id": recipientID,
		"is_read":      false,
	})
}

func (r *MongoRepository) UpdateReadFlag(ctx context.Context, recipientID string, ids []primitive.ObjectID) (int64, error) {
	query := bson.M{"recipient_id": recipientID, "is_read": false}
	if ids != nil {
		if len(ids) == 0 {
			return 0, nil
		}
		query["_id"] = bson.M{"$in": ids}
	}

	result, err := r.collection.UpdateMany(ctx, query, bson.M{
		"$set": bson.M{
			"is_read": true,
			"read_at": r.now().UTC(),
		},
	})
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}

func (r *MongoRepository) Delete(ctx context.Context, id primitive.ObjectID, recipientID string) (bool, error) {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "recipient_id": recipientID})
	if err != nil {
		return false, err
	}
	return result.DeletedCount > 0, nil
}

func (r *MongoRepository) DeleteOlderThanRead(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.collection.DeleteMany(ctx, bson.M{
		"is_read":    true,
		"created_at": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}
