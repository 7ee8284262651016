package mongo

import (
	"alcyxob/gym-sessions/internal/domain"
	"alcyxob/gym-sessions/internal/repository"
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	dietLogCollectionName    = "diet_logs"
	workoutLogCollectionName = "workout_logs"
)

// mongoActivityLogRepository keeps diet and workout logs in separate collections.
type mongoActivityLogRepository struct {
	collections map[domain.LogKind]*mongo.Collection
}

func NewMongoActivityLogRepository(db *mongo.Database) repository.ActivityLogRepository {
	return &mongoActivityLogRepository{
		collections: map[domain.LogKind]*mongo.Collection{
			domain.LogDiet:    db.Collection(dietLogCollectionName),
			domain.LogWorkout: db.Collection(workoutLogCollectionName),
		},
	}
}

func (r *mongoActivityLogRepository) collection(kind domain.LogKind) (*mongo.Collection, error) {
	c, ok := r.collections[kind]
	if !ok {
		return nil, fmt.Errorf("unknown log kind %q", kind)
	}
	return c, nil
}

func (r *mongoActivityLogRepository) Create(ctx context.Context, entry *domain.ActivityLog) (primitive.ObjectID, error) {
	c, err := r.collection(entry.Kind)
	if err != nil {
		return primitive.NilObjectID, err
	}

	entry.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	entry.CreatedAt = now
	entry.UpdatedAt = now

	if _, err := c.InsertOne(ctx, entry); err != nil {
		return primitive.NilObjectID, err
	}
	return entry.ID, nil
}

func (r *mongoActivityLogRepository) GetByID(ctx context.Context, kind domain.LogKind, id primitive.ObjectID) (*domain.ActivityLog, error) {
	c, err := r.collection(kind)
	if err != nil {
		return nil, err
	}

	var entry domain.ActivityLog
	if err := c.FindOne(ctx, bson.M{"_id": id}).Decode(&entry); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &entry, nil
}

func (r *mongoActivityLogRepository) Update(ctx context.Context, entry *domain.ActivityLog) error {
	c, err := r.collection(entry.Kind)
	if err != nil {
		return err
	}

	entry.UpdatedAt = time.Now().UTC()
	update := bson.M{
		"$set": bson.M{
			"loggedAt":  entry.LoggedAt,
			"title":     entry.Title,
			"content":   entry.Content,
			"calories":  entry.Calories,
			"mediaKey":  entry.MediaKey,
			"mediaType": entry.MediaType,
			"updatedAt": entry.UpdatedAt,
		},
	}

	result, err := c.UpdateOne(ctx, bson.M{"_id": entry.ID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *mongoActivityLogRepository) Delete(ctx context.Context, kind domain.LogKind, id primitive.ObjectID) error {
	c, err := r.collection(kind)
	if err != nil {
		return err
	}

	result, err := c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *mongoActivityLogRepository) ListByMemberID(ctx context.Context, kind domain.LogKind, memberID primitive.ObjectID) ([]domain.ActivityLog, error) {
	c, err := r.collection(kind)
	if err != nil {
		return nil, err
	}

	findOptions := options.Find().SetSort(bson.D{{Key: "loggedAt", Value: -1}})
	cursor, err := c.Find(ctx, bson.M{"memberId": memberID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	entries := []domain.ActivityLog{}
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// summaryRow is one (member, media type) group produced by Summarize's pipeline.
type summaryRow struct {
	ID struct {
		MemberID  primitive.ObjectID `bson:"memberId"`
		MediaType string             `bson:"mediaType"`
	} `bson:"_id"`
	Count         int64     `bson:"count"`
	LastCreatedAt time.Time `bson:"lastCreatedAt"`
}

// Summarize groups logs by member and media type on the server and folds the groups per member.
func (r *mongoActivityLogRepository) Summarize(ctx context.Context, kind domain.LogKind, memberID *primitive.ObjectID) ([]domain.LogSummary, error) {
	c, err := r.collection(kind)
	if err != nil {
		return nil, err
	}

	match := bson.M{}
	if memberID != nil {
		match["memberId"] = *memberID
	}
	mediaType := bson.M{"$cond": bson.A{
		bson.M{"$gt": bson.A{bson.M{"$ifNull": bson.A{"$mediaKey", ""}}, ""}},
		bson.M{"$ifNull": bson.A{"$mediaType", domain.NoMediaType}},
		domain.NoMediaType,
	}}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{
			"_id":           bson.M{"memberId": "$memberId", "mediaType": mediaType},
			"count":         bson.M{"$sum": 1},
			"lastCreatedAt": bson.M{"$max": "$createdAt"},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id.memberId", Value: 1}}}},
	}

	cursor, err := c.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []summaryRow
	if err = cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	summaries := []domain.LogSummary{}
	index := make(map[primitive.ObjectID]int)
	for _, row := range rows {
		last := row.LastCreatedAt
		part := domain.LogSummary{
			Count:         row.Count,
			LastCreatedAt: &last,
			MediaCounts:   map[string]int64{row.ID.MediaType: row.Count},
		}
		i, ok := index[row.ID.MemberID]
		if !ok {
			i = len(summaries)
			index[row.ID.MemberID] = i
			summaries = append(summaries, domain.LogSummary{MemberID: row.ID.MemberID})
		}
		summaries[i].Merge(part)
	}
	return summaries, nil
}

func EnsureActivityLogIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "memberId", Value: 1}, {Key: "loggedAt", Value: -1}},
			Options: options.Index(),
		},
	}

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		log.Printf("WARN: Failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
