package employee

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go-hrms/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type EmployeeRepository interface {
	Upsert(ctx context.Context, e *Employee) error
	FindByUserID(ctx context.Context, userID string) (*Employee, error)
	MembersOfRole(ctx context.Context, role string) ([]string, error)
	ContactAddress(ctx context.Context, userID string) (string, error)
	EnsureIndexes(ctx context.Context) error
}

type EmployeeRepositoryImpl struct {
	Collection *mongo.Collection
}

func NewEmployeeRepository(mongodb *database.MongodbDB) EmployeeRepository {
	return &EmployeeRepositoryImpl{
		Collection: mongodb.DB.Collection("employees"),
	}
}

func (r *EmployeeRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.Collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "roles", Value: 1}, {Key: "status", Value: 1}}},
	})
	return err
}

// Upsert inserts or replaces the employee keyed by UserID.
func (r *EmployeeRepositoryImpl) Upsert(ctx context.Context, e *Employee) error {
	now := time.Now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	if e.Status == "" {
		e.Status = StatusActive
	}

	update := bson.M{
		"$set": bson.M{
			"name":       e.Name,
			"email":      e.Email,
			"roles":      e.Roles,
			"status":     e.Status,
			"updated_at": e.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"user_id":    e.UserID,
			"created_at": e.CreatedAt,
		},
	}
	_, err := r.Collection.UpdateOne(ctx, bson.M{"user_id": e.UserID}, update, options.Update().SetUpsert(true))
	return err
}

func (r *EmployeeRepositoryImpl) FindByUserID(ctx context.Context, userID string) (*Employee, error) {
	var e Employee
	err := r.Collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&e)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

// MembersOfRole returns the user ids of active employees holding role.
// Role names match case-insensitively, like the push role buckets.
func (r *EmployeeRepositoryImpl) MembersOfRole(ctx context.Context, role string) ([]string, error) {
	opts := options.Find().SetProjection(bson.M{"user_id": 1})
	cursor, err := r.Collection.Find(ctx, bson.M{"roles": roleFilter(role), "status": StatusActive}, opts)
	if err != nil {
		return nil, fmt.Errorf("find members of %s: %w", role, err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		UserID string `bson:"user_id"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	members := make([]string, 0, len(rows))
	for _, row := range rows {
		members = append(members, row.UserID)
	}
	return members, nil
}

func (r *EmployeeRepositoryImpl) ContactAddress(ctx context.Context, userID string) (string, error) {
	e, err := r.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrNoContact
		}
		return "", err
	}
	addr := strings.TrimSpace(e.Email)
	if addr == "" {
		return "", ErrNoContact
	}
	return addr, nil
}

func roleFilter(role string) primitive.Regex {
	return primitive.Regex{Pattern: "^" + regexp.QuoteMeta(strings.TrimSpace(role)) + "$", Options: "i"}
}
