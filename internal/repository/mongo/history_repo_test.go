package mongo

import (
	"alcyxob/gym-sessions/internal/domain"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestHistoryDocument_KeepsPaymentPrecision(t *testing.T) {
	entry := &domain.LedgerHistoryEntry{
		ID:            primitive.NewObjectID(),
		MemberID:      primitive.NewObjectID(),
		RegularAdded:  10,
		PaymentAmount: decimal.RequireFromString("1234567.89"),
		CreatedAt:     time.Now().UTC(),
	}

	doc, err := toHistoryDocument(entry)
	require.NoError(t, err)
	back, err := doc.toDomain()
	require.NoError(t, err)

	assert.True(t, entry.PaymentAmount.Equal(back.PaymentAmount), "got %s", back.PaymentAmount)
	assert.Equal(t, 10, back.RegularAdded)
}

func TestCounterFields(t *testing.T) {
	used, total := counterFields(domain.SessionService)
	assert.Equal(t, "serviceUsed", used)
	assert.Equal(t, "serviceTotal", total)

	used, total = counterFields(domain.SessionRegular)
	assert.Equal(t, "regularUsed", used)
	assert.Equal(t, "regularTotal", total)
}
