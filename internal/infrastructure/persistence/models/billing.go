package models

import (
	"time"

	"github.com/coliving/backend/internal/domain/billing"
	"github.com/coliving/backend/internal/domain/shared"
	"github.com/coliving/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FeeModel is the persistence model for a fee definition
type FeeModel struct {
	BaseModel
	Name        string           `gorm:"type:varchar(200);not null"`
	Description string           `gorm:"type:text"`
	Basis       billing.FeeBasis `gorm:"type:varchar(20);not null"`
	Percentage  decimal.Decimal  `gorm:"type:decimal(9,6);not null;default:0"`
	FlatAmount  decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
	PaidByHouse bool             `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (FeeModel) TableName() string {
	return "fees"
}

// ToDomain converts the persistence model to a domain Fee
func (m *FeeModel) ToDomain() *billing.Fee {
	return &billing.Fee{
		BaseEntity:  m.BaseModel.ToDomain(),
		Name:        m.Name,
		Description: m.Description,
		Basis:       m.Basis,
		Percentage:  m.Percentage,
		FlatAmount:  valueobject.NewMoney(m.FlatAmount),
		PaidByHouse: m.PaidByHouse,
	}
}

// FeeModelFromDomain creates a new persistence model from a domain Fee
func FeeModelFromDomain(f *billing.Fee) *FeeModel {
	m := &FeeModel{
		Name:        f.Name,
		Description: f.Description,
		Basis:       f.Basis,
		Percentage:  f.Percentage,
		FlatAmount:  f.FlatAmount.Amount(),
		PaidByHouse: f.PaidByHouse,
	}
	m.FromDomainBaseEntity(f.BaseEntity)
	return m
}

// LocationFeeModel attaches a fee to a location, optionally overriding who keeps it
type LocationFeeModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key"`
	LocationID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_location_fees_location_fee,priority:1"`
	FeeID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_location_fees_location_fee,priority:2"`
	PaidByHouse *bool
	Fee         *FeeModel `gorm:"foreignKey:FeeID;references:ID"`
	CreatedAt   time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (LocationFeeModel) TableName() string {
	return "location_fees"
}

// ToDomain converts the persistence model to a domain LocationFee
func (m *LocationFeeModel) ToDomain() billing.LocationFee {
	lf := billing.LocationFee{
		ID:          m.ID,
		LocationID:  m.LocationID,
		FeeID:       m.FeeID,
		PaidByHouse: m.PaidByHouse,
	}
	if m.Fee != nil {
		lf.Fee = m.Fee.ToDomain()
	}
	return lf
}

// LocationFeeModelFromDomain creates a new persistence model from a domain LocationFee.
// The fee itself is saved separately.
func LocationFeeModelFromDomain(lf *billing.LocationFee) *LocationFeeModel {
	return &LocationFeeModel{
		ID:          lf.ID,
		LocationID:  lf.LocationID,
		FeeID:       lf.FeeID,
		PaidByHouse: lf.PaidByHouse,
	}
}

// BillModel is the persistence model for the Bill aggregate root.
// Exactly one of BookingID and SubscriptionID is set, as named by SubjectKind.
type BillModel struct {
	AggregateModel
	LocationID     uuid.UUID           `gorm:"type:uuid;not null;index"`
	SubjectKind    billing.SubjectKind `gorm:"type:varchar(20);not null"`
	BookingID      *uuid.UUID          `gorm:"type:uuid;uniqueIndex"`
	SubscriptionID *uuid.UUID          `gorm:"type:uuid;uniqueIndex:idx_bills_subscription_period,priority:1"`
	PeriodStart    *time.Time          `gorm:"type:date;uniqueIndex:idx_bills_subscription_period,priority:2"`
	PeriodEnd      *time.Time          `gorm:"type:date"`
	GeneratedAt    *time.Time
	Comment        string              `gorm:"type:text"`
	LineItems      []BillLineItemModel `gorm:"foreignKey:BillID;references:ID"`
	Payments       []PaymentModel      `gorm:"foreignKey:BillID;references:ID"`
}

// TableName returns the table name for GORM
func (BillModel) TableName() string {
	return "bills"
}

// Subject rebuilds the bill subject from the subject columns
func (m *BillModel) Subject() (billing.BillSubject, error) {
	switch m.SubjectKind {
	case billing.SubjectBooking:
		if m.BookingID == nil {
			return billing.BillSubject{}, corruptBill(m.ID)
		}
		return billing.ForBooking(*m.BookingID), nil
	case billing.SubjectSubscription:
		if m.SubscriptionID == nil || m.PeriodStart == nil || m.PeriodEnd == nil {
			return billing.BillSubject{}, corruptBill(m.ID)
		}
		return billing.ForSubscription(*m.SubscriptionID, m.PeriodStart.UTC(), m.PeriodEnd.UTC())
	default:
		return billing.BillSubject{}, corruptBill(m.ID)
	}
}

// ToDomain converts the persistence model to a domain Bill
func (m *BillModel) ToDomain() (*billing.Bill, error) {
	subject, err := m.Subject()
	if err != nil {
		return nil, err
	}
	bill := &billing.Bill{
		LocationID:  m.LocationID,
		Subject:     subject,
		GeneratedAt: m.GeneratedAt,
		Comment:     m.Comment,
		LineItems:   make([]billing.LineItem, len(m.LineItems)),
		Payments:    make([]billing.Payment, len(m.Payments)),
	}
	m.PopulateAggregateRoot(&bill.BaseAggregateRoot)
	for i := range m.LineItems {
		bill.LineItems[i] = m.LineItems[i].ToDomain()
	}
	for i := range m.Payments {
		bill.Payments[i] = m.Payments[i].ToDomain()
	}
	return bill, nil
}

// FromDomain populates the persistence model from a domain Bill
func (m *BillModel) FromDomain(b *billing.Bill) {
	m.FromDomainAggregateRoot(b.BaseAggregateRoot)
	m.LocationID = b.LocationID
	m.SubjectKind = b.Subject.Kind()
	m.BookingID = nil
	m.SubscriptionID = nil
	m.PeriodStart = nil
	m.PeriodEnd = nil
	if bs, ok := b.Subject.Booking(); ok {
		id := bs.BookingID
		m.BookingID = &id
	}
	if ss, ok := b.Subject.Subscription(); ok {
		id, start, end := ss.SubscriptionID, ss.PeriodStart, ss.PeriodEnd
		m.SubscriptionID = &id
		m.PeriodStart = &start
		m.PeriodEnd = &end
	}
	m.GeneratedAt = b.GeneratedAt
	m.Comment = b.Comment
	m.LineItems = make([]BillLineItemModel, len(b.LineItems))
	for i := range b.LineItems {
		m.LineItems[i] = *BillLineItemModelFromDomain(b.ID, &b.LineItems[i])
	}
	m.Payments = make([]PaymentModel, len(b.Payments))
	for i := range b.Payments {
		m.Payments[i] = *PaymentModelFromDomain(b.ID, &b.Payments[i])
	}
}

// BillModelFromDomain creates a new persistence model from a domain Bill
func BillModelFromDomain(b *billing.Bill) *BillModel {
	m := &BillModel{}
	m.FromDomain(b)
	return m
}

func corruptBill(id uuid.UUID) error {
	return shared.NewDomainError("CORRUPT_RECORD", "bill "+id.String()+" has no valid subject")
}

// BillLineItemModel is the persistence model for a bill line item
type BillLineItemModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key"`
	BillID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	Description string          `gorm:"type:varchar(500);not null"`
	Amount      decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	PaidByHouse bool            `gorm:"not null;default:false"`
	Custom      bool            `gorm:"not null;default:false"`
	FeeID       *uuid.UUID      `gorm:"type:uuid;index"`
	Position    int             `gorm:"not null;default:0"`
	CreatedAt   time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (BillLineItemModel) TableName() string {
	return "bill_line_items"
}

// ToDomain converts the persistence model to a domain LineItem
func (m *BillLineItemModel) ToDomain() billing.LineItem {
	return billing.LineItem{
		ID:          m.ID,
		BillID:      m.BillID,
		Description: m.Description,
		Amount:      valueobject.NewMoney(m.Amount),
		PaidByHouse: m.PaidByHouse,
		Custom:      m.Custom,
		FeeID:       m.FeeID,
		Position:    m.Position,
		CreatedAt:   m.CreatedAt,
	}
}

// BillLineItemModelFromDomain creates a new persistence model from a domain LineItem
func BillLineItemModelFromDomain(billID uuid.UUID, li *billing.LineItem) *BillLineItemModel {
	return &BillLineItemModel{
		ID:          li.ID,
		BillID:      billID,
		Description: li.Description,
		Amount:      li.Amount.Amount(),
		PaidByHouse: li.PaidByHouse,
		Custom:      li.Custom,
		FeeID:       li.FeeID,
		Position:    li.Position,
		CreatedAt:   li.CreatedAt,
	}
}

// PaymentModel is the persistence model for a payment or refund row. Rows are never updated.
type PaymentModel struct {
	ID            uuid.UUID       `gorm:"type:uuid;primary_key"`
	BillID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	Amount        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Service       string          `gorm:"type:varchar(50)"`
	Method        string          `gorm:"type:varchar(50)"`
	TransactionID string          `gorm:"type:varchar(100);not null;default:'Manual'"`
	PaymentDate   time.Time       `gorm:"not null;index"`
	UserID        *uuid.UUID      `gorm:"type:uuid"`
	RefundOf      *uuid.UUID      `gorm:"type:uuid;index"`
	CreatedAt     time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the persistence model to a domain Payment
func (m *PaymentModel) ToDomain() billing.Payment {
	return billing.Payment{
		ID:            m.ID,
		BillID:        m.BillID,
		Amount:        valueobject.NewMoney(m.Amount),
		Service:       m.Service,
		Method:        m.Method,
		TransactionID: m.TransactionID,
		PaymentDate:   m.PaymentDate,
		UserID:        m.UserID,
		RefundOf:      m.RefundOf,
		CreatedAt:     m.CreatedAt,
	}
}

// PaymentModelFromDomain creates a new persistence model from a domain Payment
func PaymentModelFromDomain(billID uuid.UUID, p *billing.Payment) *PaymentModel {
	return &PaymentModel{
		ID:            p.ID,
		BillID:        billID,
		Amount:        p.Amount.Amount(),
		Service:       p.Service,
		Method:        p.Method,
		TransactionID: p.TransactionID,
		PaymentDate:   p.PaymentDate,
		UserID:        p.UserID,
		RefundOf:      p.RefundOf,
		CreatedAt:     p.CreatedAt,
	}
}
