package mongo

import (
	"alcyxob/gym-sessions/internal/repository"
	"context"

	"go.mongodb.org/mongo-driver/mongo"
)

// NewRepositories wires every Mongo-backed repository against db.
func NewRepositories(client *mongo.Client, db *mongo.Database, transactions bool) repository.Set {
	members := NewMongoMemberRepository(db)
	return repository.Set{
		Members:       members,
		Roles:         members,
		Ledgers:       NewMongoLedgerRepository(db),
		History:       NewMongoHistoryRepository(db),
		Sessions:      NewMongoSessionRecordRepository(db),
		Logs:          NewMongoActivityLogRepository(db),
		Comments:      NewMongoCommentRepository(db),
		Notifications: NewMongoNotificationRepository(db),
		Tx:            NewMongoTxRunner(client, transactions),
	}
}

// EnsureIndexes creates the indexes of every collection. Failures are logged, not returned.
func EnsureIndexes(ctx context.Context, db *mongo.Database) {
	EnsureMemberIndexes(ctx, db.Collection(memberCollectionName))
	EnsureLedgerIndexes(ctx, db.Collection(ledgerCollectionName))
	EnsureHistoryIndexes(ctx, db.Collection(historyCollectionName))
	EnsureSessionRecordIndexes(ctx, db.Collection(sessionRecordCollectionName))
	EnsureActivityLogIndexes(ctx, db.Collection(dietLogCollectionName))
	EnsureActivityLogIndexes(ctx, db.Collection(workoutLogCollectionName))
	EnsureCommentIndexes(ctx, db.Collection(commentCollectionName))
	EnsureNotificationIndexes(ctx, db.Collection(notificationCollectionName))
}
