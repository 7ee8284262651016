package mongo

import (
	"alcyxob/gym-sessions/internal/domain"
	"alcyxob/gym-sessions/internal/repository"
	"context"
	"errors"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const sessionRecordCollectionName = "session_records"

// mongoSessionRecordRepository implements repository.SessionRecordRepository.
type mongoSessionRecordRepository struct {
	collection *mongo.Collection
}

func NewMongoSessionRecordRepository(db *mongo.Database) repository.SessionRecordRepository {
	return &mongoSessionRecordRepository{
		collection: db.Collection(sessionRecordCollectionName),
	}
}

func (r *mongoSessionRecordRepository) Create(ctx context.Context, record *domain.SessionRecord) (primitive.ObjectID, error) {
	record.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, record)
	if err != nil {
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}
	return insertedID, nil
}

func (r *mongoSessionRecordRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.SessionRecord, error) {
	var record domain.SessionRecord
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

// Update rewrites the descriptive fields. Member, author and completion are immutable here.
func (r *mongoSessionRecordRepository) Update(ctx context.Context, record *domain.SessionRecord) error {
	record.UpdatedAt = time.Now().UTC()
	update := bson.M{
		"$set": bson.M{
			"occurredAt":         record.OccurredAt,
			"durationMinutes":    record.DurationMinutes,
			"notes":              record.Notes,
			"trainerPrivateMemo": record.TrainerPrivateMemo,
			"updatedAt":          record.UpdatedAt,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": record.ID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *mongoSessionRecordRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *mongoSessionRecordRepository) find(ctx context.Context, filter bson.M) ([]domain.SessionRecord, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "occurredAt", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	records := []domain.SessionRecord{}
	if err = cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (r *mongoSessionRecordRepository) ListByMemberID(ctx context.Context, memberID primitive.ObjectID, from, to *time.Time) ([]domain.SessionRecord, error) {
	filter := bson.M{"memberId": memberID}
	if from != nil || to != nil {
		occurred := bson.M{}
		if from != nil {
			occurred["$gte"] = *from
		}
		if to != nil {
			occurred["$lte"] = *to
		}
		filter["occurredAt"] = occurred
	}
	return r.find(ctx, filter)
}

func (r *mongoSessionRecordRepository) ListByTrainerID(ctx context.Context, trainerID primitive.ObjectID) ([]domain.SessionRecord, error) {
	return r.find(ctx, bson.M{"trainerId": trainerID})
}

func (r *mongoSessionRecordRepository) Count(ctx context.Context) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{})
}

func EnsureSessionRecordIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "memberId", Value: 1}, {Key: "occurredAt", Value: -1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "trainerId", Value: 1}, {Key: "occurredAt", Value: -1}},
			Options: options.Index(),
		},
	}

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		log.Printf("WARN: Failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
