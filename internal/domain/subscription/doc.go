// Package subscription contains the Subscription bounded context.
// It owns the local system-of-record for recurring purchases that is kept in sync with the
// remote commerce platform.
//
// Key concepts:
//   - SellingPlan: a recurring-purchase offer (billing/delivery cadence and price adjustment)
//   - CustomerSubscription: a customer's recurring-order contract and its billing schedule
//   - BillingAttempt: one charge attempt, append-only per subscription
//   - SyncState: remote identity plus the dirty-push flag and sync timestamps
//
// Dirty marking is explicit: services compare the old and new state with Diff and call
// MarkDirty when a sync-relevant field changed. Nothing here inspects the database.
package subscription
