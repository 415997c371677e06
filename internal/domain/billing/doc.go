// Package billing holds the billing ledger of a shared-living house.
//
// A Bill is the accounting record for one billable subject: a booking, or one
// monthly period of a subscription. It owns an ordered list of line items and an
// append-only list of payments.
//
// Key types:
//   - Bill: aggregate root; regenerated from a ChargePlan, queried for totals
//   - BillSubject: tagged variant naming exactly one booking or subscription period
//   - LineItem: one charge or credit; automatic items are replaced on regeneration,
//     custom items survive it
//   - Payment: one payment or refund; refunds are negative rows pointing at the
//     payment they reverse
//   - Fee / LocationFee: reusable fee templates and their per-house attachment
//
// ResolveCharges turns a ChargeBasis (rate inputs of the subject) and the house's
// fees into a ChargePlan. Bill.Regenerate applies a plan. Persisting and locking
// are the application layer's job.
package billing
