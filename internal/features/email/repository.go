package email

import (
	"context"
	"time"

	"go-hrms/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Outbox records every attempted email and its final status.
type Outbox interface {
	Create(ctx context.Context, email *Email) error
	UpdateStatus(ctx context.Context, id primitive.ObjectID, status EmailStatus, errorMsg string) error
}

type EmailRepository struct {
	col *mongo.Collection
}

func NewEmailRepository(db *database.MongodbDB) *EmailRepository {
	return &EmailRepository{
		col: db.DB.Collection("emails"),
	}
}

func (r *EmailRepository) Create(ctx context.Context, email *Email) error {
	if email.ID.IsZero() {
		email.ID = primitive.NewObjectID()
	}
	email.CreatedAt = time.Now()
	_, err := r.col.InsertOne(ctx, email)
	return err
}

func (r *EmailRepository) UpdateStatus(
	ctx context.Context,
	id primitive.ObjectID,
	status EmailStatus,
	errorMsg string,
) error {
	set := bson.M{
		"status":       status,
		"errorMessage": errorMsg,
	}
	if status == EmailSent {
		set["sentAt"] = time.Now()
	}
	_, err := r.col.UpdateByID(ctx, id, bson.M{"$set": set})
	return err
}
