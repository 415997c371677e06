// Package models holds the GORM rows behind the billing aggregates. Domain
// types carry no ORM tags; each model converts to and from its aggregate with
// ToDomain and a ...FromDomain constructor.
//
// Bills are stored as three tables: bills, bill_line_items and payments.
// Line items keep their position so a bill reads back in the order it was
// built. Payments are append-only.
package models
