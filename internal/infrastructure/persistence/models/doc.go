// Package models holds the GORM row types for the sync state store. Domain entities carry no
// ORM tags; each model converts with FromDomain/ToDomain and repositories only persist models.
//
// base.go has the shared ID and timestamp columns, subscription.go the selling plan,
// subscription, billing attempt and customer tables, sync_log.go the audit log.
package models
