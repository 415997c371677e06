package models

import (
	"encoding/json"
	"time"

	"github.com/coliving/backend/internal/domain/booking"
	"github.com/coliving/backend/internal/domain/shared"
	"github.com/coliving/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LocationModel is the persistence model for a house
type LocationModel struct {
	BaseModel
	Name string `gorm:"type:varchar(200);not null"`
	Slug string `gorm:"type:varchar(100);not null;uniqueIndex"`
}

// TableName returns the table name for GORM
func (LocationModel) TableName() string {
	return "locations"
}

// ToDomain converts the persistence model to a domain Location
func (m *LocationModel) ToDomain() *booking.Location {
	return &booking.Location{
		BaseEntity: m.BaseModel.ToDomain(),
		Name:       m.Name,
		Slug:       m.Slug,
	}
}

// LocationModelFromDomain creates a new persistence model from a domain Location
func LocationModelFromDomain(l *booking.Location) *LocationModel {
	m := &LocationModel{Name: l.Name, Slug: l.Slug}
	m.FromDomainBaseEntity(l.BaseEntity)
	return m
}

// ResourceModel is the persistence model for a room
type ResourceModel struct {
	BaseModel
	LocationID  uuid.UUID        `gorm:"type:uuid;not null;index"`
	Name        string           `gorm:"type:varchar(200);not null"`
	DefaultRate *decimal.Decimal `gorm:"type:decimal(18,4)"`
	Reservable  bool             `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (ResourceModel) TableName() string {
	return "resources"
}

// ToDomain converts the persistence model to a domain Resource
func (m *ResourceModel) ToDomain() *booking.Resource {
	return &booking.Resource{
		BaseEntity:  m.BaseModel.ToDomain(),
		LocationID:  m.LocationID,
		Name:        m.Name,
		DefaultRate: moneyPtr(m.DefaultRate),
		Reservable:  m.Reservable,
	}
}

// ResourceModelFromDomain creates a new persistence model from a domain Resource
func ResourceModelFromDomain(r *booking.Resource) *ResourceModel {
	m := &ResourceModel{
		LocationID:  r.LocationID,
		Name:        r.Name,
		DefaultRate: decimalPtr(r.DefaultRate),
		Reservable:  r.Reservable,
	}
	m.FromDomainBaseEntity(r.BaseEntity)
	return m
}

// BookingModel is the persistence model for the Booking aggregate root
type BookingModel struct {
	AggregateModel
	LocationID     uuid.UUID        `gorm:"type:uuid;not null;index:idx_bookings_location_dates,priority:1"`
	ResourceID     uuid.UUID        `gorm:"type:uuid;not null;index"`
	UserID         uuid.UUID        `gorm:"type:uuid;not null;index"`
	Arrive         time.Time        `gorm:"type:date;not null;index:idx_bookings_location_dates,priority:2"`
	Depart         time.Time        `gorm:"type:date;not null;index:idx_bookings_location_dates,priority:3"`
	Status         booking.Status   `gorm:"type:varchar(20);not null;default:'pending'"`
	Purpose        string           `gorm:"type:text"`
	Comp           bool             `gorm:"not null;default:false"`
	Rate           *decimal.Decimal `gorm:"type:decimal(18,4)"`
	SuppressedFees string           `gorm:"column:suppressed_fees;type:jsonb;not null;default:'[]'"`
	BillID         *uuid.UUID       `gorm:"type:uuid;index"`
}

// TableName returns the table name for GORM
func (BookingModel) TableName() string {
	return "bookings"
}

// ToDomain converts the persistence model to a domain Booking
func (m *BookingModel) ToDomain() (*booking.Booking, error) {
	suppressed, err := decodeFeeIDs(m.SuppressedFees)
	if err != nil {
		return nil, err
	}
	b := &booking.Booking{
		Use: booking.Use{
			Arrive:     m.Arrive.UTC(),
			Depart:     m.Depart.UTC(),
			ResourceID: m.ResourceID,
			LocationID: m.LocationID,
			UserID:     m.UserID,
			Status:     m.Status,
			Purpose:    m.Purpose,
		},
		Comp:           m.Comp,
		Rate:           moneyPtr(m.Rate),
		SuppressedFees: suppressed,
	}
	m.PopulateAggregateRoot(&b.BaseAggregateRoot)
	if m.BillID != nil {
		b.BillID = *m.BillID
	}
	return b, nil
}

// FromDomain populates the persistence model from a domain Booking
func (m *BookingModel) FromDomain(b *booking.Booking) error {
	suppressed, err := encodeFeeIDs(b.SuppressedFees)
	if err != nil {
		return err
	}
	m.FromDomainAggregateRoot(b.BaseAggregateRoot)
	m.LocationID = b.Use.LocationID
	m.ResourceID = b.Use.ResourceID
	m.UserID = b.Use.UserID
	m.Arrive = b.Use.Arrive
	m.Depart = b.Use.Depart
	m.Status = b.Use.Status
	m.Purpose = b.Use.Purpose
	m.Comp = b.Comp
	m.Rate = decimalPtr(b.Rate)
	m.SuppressedFees = suppressed
	m.BillID = nil
	if b.BillID != uuid.Nil {
		billID := b.BillID
		m.BillID = &billID
	}
	return nil
}

// BookingModelFromDomain creates a new persistence model from a domain Booking
func BookingModelFromDomain(b *booking.Booking) (*BookingModel, error) {
	m := &BookingModel{}
	if err := m.FromDomain(b); err != nil {
		return nil, err
	}
	return m, nil
}

// SubscriptionModel is the persistence model for the Subscription aggregate root
type SubscriptionModel struct {
	AggregateModel
	LocationID     uuid.UUID        `gorm:"type:uuid;not null;index"`
	UserID         uuid.UUID        `gorm:"type:uuid;not null;index"`
	Description    string           `gorm:"type:varchar(500)"`
	Price          decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	StartDate      time.Time        `gorm:"type:date;not null"`
	EndDate        *time.Time       `gorm:"type:date"`
	Comp           bool             `gorm:"not null;default:false"`
	Rate           *decimal.Decimal `gorm:"type:decimal(18,4)"`
	SuppressedFees string           `gorm:"column:suppressed_fees;type:jsonb;not null;default:'[]'"`
}

// TableName returns the table name for GORM
func (SubscriptionModel) TableName() string {
	return "subscriptions"
}

// ToDomain converts the persistence model to a domain Subscription
func (m *SubscriptionModel) ToDomain() (*booking.Subscription, error) {
	suppressed, err := decodeFeeIDs(m.SuppressedFees)
	if err != nil {
		return nil, err
	}
	s := &booking.Subscription{
		LocationID:     m.LocationID,
		UserID:         m.UserID,
		Description:    m.Description,
		Price:          valueobject.NewMoney(m.Price),
		StartDate:      m.StartDate.UTC(),
		Comp:           m.Comp,
		Rate:           moneyPtr(m.Rate),
		SuppressedFees: suppressed,
	}
	m.PopulateAggregateRoot(&s.BaseAggregateRoot)
	if m.EndDate != nil {
		end := m.EndDate.UTC()
		s.EndDate = &end
	}
	return s, nil
}

// FromDomain populates the persistence model from a domain Subscription
func (m *SubscriptionModel) FromDomain(s *booking.Subscription) error {
	suppressed, err := encodeFeeIDs(s.SuppressedFees)
	if err != nil {
		return err
	}
	m.FromDomainAggregateRoot(s.BaseAggregateRoot)
	m.LocationID = s.LocationID
	m.UserID = s.UserID
	m.Description = s.Description
	m.Price = s.Price.Amount()
	m.StartDate = s.StartDate
	m.EndDate = s.EndDate
	m.Comp = s.Comp
	m.Rate = decimalPtr(s.Rate)
	m.SuppressedFees = suppressed
	return nil
}

// SubscriptionModelFromDomain creates a new persistence model from a domain Subscription
func SubscriptionModelFromDomain(s *booking.Subscription) (*SubscriptionModel, error) {
	m := &SubscriptionModel{}
	if err := m.FromDomain(s); err != nil {
		return nil, err
	}
	return m, nil
}

func encodeFeeIDs(ids []uuid.UUID) (string, error) {
	if len(ids) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeFeeIDs(raw string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0)
	if raw == "" {
		return ids, nil
	}
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, shared.NewDomainError("CORRUPT_RECORD", "suppressed fees are not a list of ids")
	}
	return ids, nil
}

func moneyPtr(d *decimal.Decimal) *valueobject.Money {
	if d == nil {
		return nil
	}
	m := valueobject.NewMoney(*d)
	return &m
}

func decimalPtr(m *valueobject.Money) *decimal.Decimal {
	if m == nil {
		return nil
	}
	d := m.Amount()
	return &d
}
