package mongo

import (
	"alcyxob/gym-sessions/internal/repository"
	"context"
	"errors"
	"log"

	"go.mongodb.org/mongo-driver/mongo"
)

// txAttempts bounds how often a unit of work that lost a write race is rerun.
const txAttempts = 2

// mongoTxRunner runs units of work inside a multi-document transaction.
// Transactions need a replica set; with enabled=false the function runs
// directly and only the per-document conditional updates guard the ledger.
type mongoTxRunner struct {
	client  *mongo.Client
	enabled bool
}

func NewMongoTxRunner(client *mongo.Client, enabled bool) *mongoTxRunner {
	return &mongoTxRunner{client: client, enabled: enabled}
}

// RollsBack reports whether units of work run inside a transaction.
func (r *mongoTxRunner) RollsBack() bool { return r.enabled }

func (r *mongoTxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if !r.enabled || mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}

	return rerunOnConflict(txAttempts, func() error { return r.runOnce(ctx, fn) })
}

// rerunOnConflict calls run until it stops failing with ErrWriteConflict, at most attempts times.
func rerunOnConflict(attempts int, run func() error) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = run()
		if !errors.Is(err, repository.ErrWriteConflict) {
			return err
		}
		log.Printf("WARN: Transaction lost a write race (attempt %d/%d)", attempt, attempts)
	}
	return err
}

func (r *mongoTxRunner) runOnce(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := r.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}
