package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LedgerHistoryEntry records exactly what a single registration call added.
// Entries are append-only.
type LedgerHistoryEntry struct {
	ID            primitive.ObjectID `json:"id"`
	MemberID      primitive.ObjectID `json:"memberId"`
	RegularAdded  int                `json:"regularAdded"`
	ServiceAdded  int                `json:"serviceAdded"`
	PaymentAmount decimal.Decimal    `json:"paymentAmount"`
	ValidFrom     *time.Time         `json:"validFrom,omitempty"`
	ValidTo       *time.Time         `json:"validTo,omitempty"`
	CreatedAt     time.Time          `json:"createdAt"`
}
