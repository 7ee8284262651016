package mongo

import (
	"alcyxob/gym-sessions/internal/domain"
	"alcyxob/gym-sessions/internal/repository"
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const memberCollectionName = "members"

// notDeleted filters out tombstoned members.
var notDeleted = bson.M{"$exists": false}

// mongoMemberRepository implements repository.MemberRepository and repository.RoleWriter.
type mongoMemberRepository struct {
	collection *mongo.Collection
}

// NewMongoMemberRepository creates a new instance of mongoMemberRepository.
func NewMongoMemberRepository(db *mongo.Database) *mongoMemberRepository {
	return &mongoMemberRepository{
		collection: db.Collection(memberCollectionName),
	}
}

// Create inserts a new member. Emails are stored lowercased.
func (r *mongoMemberRepository) Create(ctx context.Context, member *domain.Member) (primitive.ObjectID, error) {
	if member.Email == "" || member.Role == "" {
		return primitive.NilObjectID, errors.New("member email and role are required")
	}

	member.ID = primitive.NewObjectID()
	member.Email = strings.ToLower(member.Email)
	now := time.Now().UTC()
	member.CreatedAt = now
	member.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, member)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}
	return insertedID, nil
}

func (r *mongoMemberRepository) findOne(ctx context.Context, filter bson.M) (*domain.Member, error) {
	var member domain.Member
	filter["deletedAt"] = notDeleted

	err := r.collection.FindOne(ctx, filter).Decode(&member)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &member, nil
}

// GetByID retrieves an active member by ObjectID.
func (r *mongoMemberRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Member, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// GetByEmail retrieves an active member by email address.
func (r *mongoMemberRepository) GetByEmail(ctx context.Context, email string) (*domain.Member, error) {
	return r.findOne(ctx, bson.M{"email": strings.ToLower(email)})
}

// GetByPhone retrieves an active member by phone number.
func (r *mongoMemberRepository) GetByPhone(ctx context.Context, phone string) (*domain.Member, error) {
	if phone == "" {
		return nil, repository.ErrNotFound
	}
	return r.findOne(ctx, bson.M{"phone": phone})
}

func (r *mongoMemberRepository) find(ctx context.Context, filter bson.M) ([]domain.Member, error) {
	filter["deletedAt"] = notDeleted
	findOptions := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	members := []domain.Member{}
	if err = cursor.All(ctx, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// List returns every active member, optionally only those with role.
func (r *mongoMemberRepository) List(ctx context.Context, role *domain.Role) ([]domain.Member, error) {
	filter := bson.M{}
	if role != nil {
		filter["role"] = *role
	}
	return r.find(ctx, filter)
}

// ListByTrainerID returns the active trainees of a trainer.
func (r *mongoMemberRepository) ListByTrainerID(ctx context.Context, trainerID primitive.ObjectID) ([]domain.Member, error) {
	return r.find(ctx, bson.M{"trainerId": trainerID})
}

// ListByRole returns active members with the role, optionally limited to one trainer's trainees.
func (r *mongoMemberRepository) ListByRole(ctx context.Context, role domain.Role, trainerID *primitive.ObjectID) ([]domain.Member, error) {
	filter := bson.M{"role": role}
	if trainerID != nil {
		filter["trainerId"] = *trainerID
	}
	return r.find(ctx, filter)
}

// SetTrainer sets the TrainerID field for an active member.
func (r *mongoMemberRepository) SetTrainer(ctx context.Context, memberID, trainerID primitive.ObjectID) error {
	filter := bson.M{"_id": memberID, "deletedAt": notDeleted}
	update := bson.M{
		"$set": bson.M{
			"trainerId": trainerID,
			"updatedAt": time.Now().UTC(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *mongoMemberRepository) setFields(ctx context.Context, id primitive.ObjectID, fields bson.M) error {
	fields["updatedAt"] = time.Now().UTC()
	filter := bson.M{"_id": id, "deletedAt": notDeleted}

	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": fields})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// UpdateProfile replaces the editable profile fields of an active member.
func (r *mongoMemberRepository) UpdateProfile(ctx context.Context, id primitive.ObjectID, name, phone string) error {
	return r.setFields(ctx, id, bson.M{"name": name, "phone": phone})
}

func (r *mongoMemberRepository) SetPasswordHash(ctx context.Context, id primitive.ObjectID, hash string) error {
	return r.setFields(ctx, id, bson.M{"passwordHash": hash})
}

// ClearTrainer detaches every member from the trainer. Tombstoned rows are included
// so no member keeps a dangling reference.
func (r *mongoMemberRepository) ClearTrainer(ctx context.Context, trainerID primitive.ObjectID) (int64, error) {
	filter := bson.M{"trainerId": trainerID}
	update := bson.M{
		"$unset": bson.M{"trainerId": ""},
		"$set":   bson.M{"updatedAt": time.Now().UTC()},
	}

	result, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}

// SoftDelete tombstones an active member.
func (r *mongoMemberRepository) SoftDelete(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	filter := bson.M{"_id": id, "deletedAt": notDeleted}
	update := bson.M{"$set": bson.M{"deletedAt": at, "updatedAt": time.Now().UTC()}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// HardDelete removes the document irreversibly.
func (r *mongoMemberRepository) HardDelete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// TransitionRole flips the role only while the stored role still equals from.
func (r *mongoMemberRepository) TransitionRole(ctx context.Context, id primitive.ObjectID, from, to domain.Role) (bool, error) {
	filter := bson.M{"_id": id, "role": from, "deletedAt": notDeleted}
	update := bson.M{"$set": bson.M{"role": to, "updatedAt": time.Now().UTC()}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return result.ModifiedCount == 1, nil
}

// EnsureMemberIndexes creates necessary indexes for the members collection.
// Call this once during application startup.
func EnsureMemberIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "role", Value: 1}, {Key: "trainerId", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "trainerId", Value: 1}},
			Options: options.Index().SetSparse(true), // Trainers and admins have no trainerId
		},
	}

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		log.Printf("WARN: Failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
