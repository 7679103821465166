package subscription

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Sync-relevant fields reported by Diff
const (
	FieldStatus           = "status"
	FieldNextBillingDate  = "next_billing_date"
	FieldNextDeliveryDate = "next_delivery_date"
	FieldBillingInterval  = "billing_interval"
	FieldDeliveryInterval = "delivery_interval"
	FieldLineItems        = "line_items"
	FieldCurrency         = "currency"
	FieldDeliveryAddress  = "delivery_address"
	FieldPaymentMethod    = "payment_method"
	FieldTotalCycles      = "total_cycles"
	FieldSellingPlan      = "selling_plan"
	FieldName             = "name"
	FieldAdjustment       = "price_adjustment"
	FieldActive           = "active"
)

// ChangeSet lists the sync-relevant fields that differ between two versions of an entity
type ChangeSet []string

// Empty reports no changes
func (c ChangeSet) Empty() bool {
	return len(c) == 0
}

// Has reports whether field changed
func (c ChangeSet) Has(field string) bool {
	return slices.Contains(c, field)
}

// Diff compares the fields of two subscriptions that the remote platform cares about.
// Sync bookkeeping (timestamps, flags, counters) is ignored.
func Diff(before, after *CustomerSubscription) ChangeSet {
	var c ChangeSet
	if before.Status != after.Status {
		c = append(c, FieldStatus)
	}
	if !sameDate(before.NextBillingDate, after.NextBillingDate) {
		c = append(c, FieldNextBillingDate)
	}
	if !sameDatePtr(before.NextDeliveryDate, after.NextDeliveryDate) {
		c = append(c, FieldNextDeliveryDate)
	}
	if before.BillingInterval != after.BillingInterval {
		c = append(c, FieldBillingInterval)
	}
	if before.DeliveryInterval != after.DeliveryInterval {
		c = append(c, FieldDeliveryInterval)
	}
	if !sameLineItems(before.LineItems, after.LineItems) {
		c = append(c, FieldLineItems)
	}
	if before.Currency != after.Currency {
		c = append(c, FieldCurrency)
	}
	if before.DeliveryAddress != after.DeliveryAddress {
		c = append(c, FieldDeliveryAddress)
	}
	if !sameString(before.PaymentMethodRef, after.PaymentMethodRef) {
		c = append(c, FieldPaymentMethod)
	}
	if !sameInt(before.TotalCycles, after.TotalCycles) {
		c = append(c, FieldTotalCycles)
	}
	if !sameUUID(before.SellingPlanID, after.SellingPlanID) {
		c = append(c, FieldSellingPlan)
	}
	return c
}

// DiffPlans compares the remote-visible fields of two selling plans
func DiffPlans(before, after *SellingPlan) ChangeSet {
	var c ChangeSet
	if before.Name != after.Name {
		c = append(c, FieldName)
	}
	if before.BillingInterval != after.BillingInterval {
		c = append(c, FieldBillingInterval)
	}
	if before.DeliveryInterval != after.DeliveryInterval {
		c = append(c, FieldDeliveryInterval)
	}
	if before.Adjustment.Kind != after.Adjustment.Kind || !before.Adjustment.Value.Equal(after.Adjustment.Value) {
		c = append(c, FieldAdjustment)
	}
	if before.Active != after.Active {
		c = append(c, FieldActive)
	}
	return c
}

func sameLineItems(a, b []LineItem) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].VariantRef != b[i].VariantRef || a[i].Quantity != b[i].Quantity ||
			a[i].Title != b[i].Title || !a[i].UnitPrice.Equal(b[i].UnitPrice) {
			return false
		}
	}
	return true
}

func sameDate(a, b time.Time) bool {
	return DateOnly(a).Equal(DateOnly(b))
}

func sameDatePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return sameDate(*a, *b)
}

func sameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func sameInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func sameUUID(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
