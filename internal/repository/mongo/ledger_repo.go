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

const ledgerCollectionName = "session_ledgers"

// mongoLedgerRepository implements repository.LedgerRepository.
// Counter changes are single conditional FindOneAndUpdate calls, so two
// concurrent consumers can never both take the last unit.
type mongoLedgerRepository struct {
	collection *mongo.Collection
}

func NewMongoLedgerRepository(db *mongo.Database) repository.LedgerRepository {
	return &mongoLedgerRepository{
		collection: db.Collection(ledgerCollectionName),
	}
}

// counterFields maps a session kind to its (used, total) document fields.
func counterFields(kind domain.SessionKind) (string, string) {
	if kind == domain.SessionService {
		return "serviceUsed", "serviceTotal"
	}
	return "regularUsed", "regularTotal"
}

var returnAfter = options.FindOneAndUpdate().SetReturnDocument(options.After)

func (r *mongoLedgerRepository) GetByMemberID(ctx context.Context, memberID primitive.ObjectID) (*domain.SessionLedger, error) {
	var ledger domain.SessionLedger
	err := r.collection.FindOne(ctx, bson.M{"memberId": memberID}).Decode(&ledger)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &ledger, nil
}

// upsert runs an upserting FindOneAndUpdate on the member's ledger. A concurrent
// first insert can lose the race on the unique memberId index; the retry then
// matches the row the winner created. Inside a transaction the server has
// already aborted it, so ErrWriteConflict goes back to the TxRunner instead.
func (r *mongoLedgerRepository) upsert(ctx context.Context, memberID primitive.ObjectID, update bson.M) (*domain.SessionLedger, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	attempts := 2
	if mongo.SessionFromContext(ctx) != nil {
		attempts = 1
	}

	var ledger domain.SessionLedger
	for attempt := 0; attempt < attempts; attempt++ {
		err := r.collection.FindOneAndUpdate(ctx, bson.M{"memberId": memberID}, update, opts).Decode(&ledger)
		if err == nil {
			return &ledger, nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return nil, err
		}
	}
	if attempts == 1 {
		return nil, repository.ErrWriteConflict
	}
	return nil, repository.ErrUpdateFailed
}

// GetOrCreate returns the ledger, inserting a zero-valued one if needed.
func (r *mongoLedgerRepository) GetOrCreate(ctx context.Context, memberID primitive.ObjectID) (*domain.SessionLedger, error) {
	now := time.Now().UTC()
	update := bson.M{
		"$setOnInsert": bson.M{
			"regularTotal": 0,
			"regularUsed":  0,
			"serviceTotal": 0,
			"serviceUsed":  0,
			"createdAt":    now,
			"updatedAt":    now,
		},
	}
	return r.upsert(ctx, memberID, update)
}

// AddSessions credits both totals and replaces the validity bounds that are given.
func (r *mongoLedgerRepository) AddSessions(ctx context.Context, memberID primitive.ObjectID, regular, service int, validFrom, validTo *time.Time) (*domain.SessionLedger, error) {
	now := time.Now().UTC()
	set := bson.M{"updatedAt": now}
	if validFrom != nil {
		set["validFrom"] = *validFrom
	}
	if validTo != nil {
		set["validTo"] = *validTo
	}

	update := bson.M{
		"$inc": bson.M{"regularTotal": regular, "serviceTotal": service},
		"$set": set,
		"$setOnInsert": bson.M{
			"regularUsed": 0,
			"serviceUsed": 0,
			"createdAt":   now,
		},
	}
	return r.upsert(ctx, memberID, update)
}

// exists tells a missing ledger apart from a failed condition after a no-match.
func (r *mongoLedgerRepository) exists(ctx context.Context, memberID primitive.ObjectID) error {
	n, err := r.collection.CountDocuments(ctx, bson.M{"memberId": memberID})
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return repository.ErrConditionNotMet
}

// ConsumeOne increments the used counter while used < total.
func (r *mongoLedgerRepository) ConsumeOne(ctx context.Context, memberID primitive.ObjectID, kind domain.SessionKind) (*domain.SessionLedger, error) {
	used, total := counterFields(kind)
	filter := bson.M{
		"memberId": memberID,
		"$expr":    bson.M{"$lt": bson.A{"$" + used, "$" + total}},
	}
	update := bson.M{
		"$inc": bson.M{used: 1},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	}

	var ledger domain.SessionLedger
	err := r.collection.FindOneAndUpdate(ctx, filter, update, returnAfter).Decode(&ledger)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, r.exists(ctx, memberID)
		}
		return nil, err
	}
	return &ledger, nil
}

// RestoreOne decrements the used counter while it is positive.
func (r *mongoLedgerRepository) RestoreOne(ctx context.Context, memberID primitive.ObjectID, kind domain.SessionKind) (*domain.SessionLedger, error) {
	used, _ := counterFields(kind)
	filter := bson.M{"memberId": memberID, used: bson.M{"$gt": 0}}
	update := bson.M{
		"$inc": bson.M{used: -1},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	}

	var ledger domain.SessionLedger
	err := r.collection.FindOneAndUpdate(ctx, filter, update, returnAfter).Decode(&ledger)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, r.exists(ctx, memberID)
		}
		return nil, err
	}
	return &ledger, nil
}

// RevokeSessions lowers both totals while neither would drop below its used counter.
func (r *mongoLedgerRepository) RevokeSessions(ctx context.Context, memberID primitive.ObjectID, regular, service int, validFrom, validTo *time.Time) (*domain.SessionLedger, error) {
	filter := bson.M{
		"memberId": memberID,
		"$expr": bson.M{"$and": bson.A{
			bson.M{"$gte": bson.A{bson.M{"$subtract": bson.A{"$regularTotal", regular}}, "$regularUsed"}},
			bson.M{"$gte": bson.A{bson.M{"$subtract": bson.A{"$serviceTotal", service}}, "$serviceUsed"}},
		}},
	}

	set := bson.M{"updatedAt": time.Now().UTC()}
	unset := bson.M{}
	if validFrom != nil {
		set["validFrom"] = *validFrom
	} else {
		unset["validFrom"] = ""
	}
	if validTo != nil {
		set["validTo"] = *validTo
	} else {
		unset["validTo"] = ""
	}
	update := bson.M{
		"$inc": bson.M{"regularTotal": -regular, "serviceTotal": -service},
		"$set": set,
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	var ledger domain.SessionLedger
	err := r.collection.FindOneAndUpdate(ctx, filter, update, returnAfter).Decode(&ledger)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, r.exists(ctx, memberID)
		}
		return nil, err
	}
	return &ledger, nil
}

func (r *mongoLedgerRepository) ListByMemberIDs(ctx context.Context, memberIDs []primitive.ObjectID) ([]domain.SessionLedger, error) {
	ledgers := []domain.SessionLedger{}
	if len(memberIDs) == 0 {
		return ledgers, nil
	}

	cursor, err := r.collection.Find(ctx, bson.M{"memberId": bson.M{"$in": memberIDs}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &ledgers); err != nil {
		return nil, err
	}
	return ledgers, nil
}

func (r *mongoLedgerRepository) DeleteByMemberID(ctx context.Context, memberID primitive.ObjectID) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"memberId": memberID})
	return err
}

// EnsureLedgerIndexes creates the unique memberId index the upserts rely on.
func EnsureLedgerIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "memberId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		log.Printf("WARN: Failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
