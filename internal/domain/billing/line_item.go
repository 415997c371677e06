package billing

import (
	"time"

	"github.com/coliving/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// LineItem is one charge or credit on a bill. Negative amounts are discounts.
type LineItem struct {
	ID          uuid.UUID
	BillID      uuid.UUID
	Description string
	Amount      valueobject.Money
	// PaidByHouse items are borne by the operator; they still count toward the bill amount
	PaidByHouse bool
	// Custom items were added by an admin and survive regeneration
	Custom    bool
	FeeID     *uuid.UUID
	Position  int
	CreatedAt time.Time
}

// IsFee reports whether the item was generated from a Fee
func (li LineItem) IsFee() bool {
	return li.FeeID != nil
}

// IsAutomatic reports whether regeneration owns the item
func (li LineItem) IsAutomatic() bool {
	return !li.Custom
}

// References reports whether the item was generated from the given fee
func (li LineItem) References(feeID uuid.UUID) bool {
	return li.FeeID != nil && *li.FeeID == feeID
}
