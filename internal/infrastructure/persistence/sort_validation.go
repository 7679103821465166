package persistence

import (
	"strings"
)

// ValidateSortOrder normalizes a direction to ASC or DESC, defaulting to DESC
func ValidateSortOrder(orderDir string) string {
	if strings.ToUpper(strings.TrimSpace(orderDir)) == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField returns sortField when whitelisted, otherwise defaultField.
// Column names never reach SQL unless they appear in allowedFields.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed != "" && allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// SubscriptionSortFields are the sortable subscription columns
var SubscriptionSortFields = map[string]bool{
	"created_at":          true,
	"updated_at":          true,
	"next_billing_date":   true,
	"status":              true,
	"billing_cycle_count": true,
}

// orderClause builds a safe ORDER BY clause with id as tie breaker for stable paging
func orderClause(sortBy, sortOrder string, allowed map[string]bool, defaultField string) string {
	return ValidateSortField(sortBy, allowed, defaultField) + " " + ValidateSortOrder(sortOrder) + ", id"
}
