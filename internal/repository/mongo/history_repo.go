package mongo

import (
	"alcyxob/gym-sessions/internal/domain"
	"alcyxob/gym-sessions/internal/repository"
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const historyCollectionName = "ledger_history"

// historyDocument is the stored shape of a LedgerHistoryEntry. Payment amounts
// are kept as Decimal128 so they stay exact and sortable in the database.
type historyDocument struct {
	ID            primitive.ObjectID   `bson:"_id,omitempty"`
	MemberID      primitive.ObjectID   `bson:"memberId"`
	RegularAdded  int                  `bson:"regularAdded"`
	ServiceAdded  int                  `bson:"serviceAdded"`
	PaymentAmount primitive.Decimal128 `bson:"paymentAmount"`
	ValidFrom     *time.Time           `bson:"validFrom,omitempty"`
	ValidTo       *time.Time           `bson:"validTo,omitempty"`
	CreatedAt     time.Time            `bson:"createdAt"`
}

func toHistoryDocument(e *domain.LedgerHistoryEntry) (historyDocument, error) {
	amount, err := primitive.ParseDecimal128(e.PaymentAmount.String())
	if err != nil {
		return historyDocument{}, fmt.Errorf("encode payment amount: %w", err)
	}
	return historyDocument{
		ID:            e.ID,
		MemberID:      e.MemberID,
		RegularAdded:  e.RegularAdded,
		ServiceAdded:  e.ServiceAdded,
		PaymentAmount: amount,
		ValidFrom:     e.ValidFrom,
		ValidTo:       e.ValidTo,
		CreatedAt:     e.CreatedAt,
	}, nil
}

func (d historyDocument) toDomain() (domain.LedgerHistoryEntry, error) {
	amount, err := decimal.NewFromString(d.PaymentAmount.String())
	if err != nil {
		return domain.LedgerHistoryEntry{}, fmt.Errorf("decode payment amount: %w", err)
	}
	return domain.LedgerHistoryEntry{
		ID:            d.ID,
		MemberID:      d.MemberID,
		RegularAdded:  d.RegularAdded,
		ServiceAdded:  d.ServiceAdded,
		PaymentAmount: amount,
		ValidFrom:     d.ValidFrom,
		ValidTo:       d.ValidTo,
		CreatedAt:     d.CreatedAt,
	}, nil
}

// mongoHistoryRepository implements repository.LedgerHistoryRepository.
type mongoHistoryRepository struct {
	collection *mongo.Collection
}

func NewMongoHistoryRepository(db *mongo.Database) repository.LedgerHistoryRepository {
	return &mongoHistoryRepository{
		collection: db.Collection(historyCollectionName),
	}
}

var newestFirst = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}

func (r *mongoHistoryRepository) Append(ctx context.Context, entry *domain.LedgerHistoryEntry) (primitive.ObjectID, error) {
	entry.ID = primitive.NewObjectID()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	doc, err := toHistoryDocument(entry)
	if err != nil {
		return primitive.NilObjectID, err
	}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return primitive.NilObjectID, err
	}
	return entry.ID, nil
}

func (r *mongoHistoryRepository) Latest(ctx context.Context, memberID primitive.ObjectID) (*domain.LedgerHistoryEntry, error) {
	var doc historyDocument
	opts := options.FindOne().SetSort(newestFirst)

	err := r.collection.FindOne(ctx, bson.M{"memberId": memberID}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	entry, err := doc.toDomain()
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *mongoHistoryRepository) ListByMemberID(ctx context.Context, memberID primitive.ObjectID) ([]domain.LedgerHistoryEntry, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"memberId": memberID}, options.Find().SetSort(newestFirst))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []historyDocument
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	entries := make([]domain.LedgerHistoryEntry, 0, len(docs))
	for _, doc := range docs {
		entry, err := doc.toDomain()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (r *mongoHistoryRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *mongoHistoryRepository) DeleteByMemberID(ctx context.Context, memberID primitive.ObjectID) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"memberId": memberID})
	return err
}

func EnsureHistoryIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "memberId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index(),
		},
	}

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		log.Printf("WARN: Failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
