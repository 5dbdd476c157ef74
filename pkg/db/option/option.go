// Package option provides composable gorm query scopes for the generic repository store.
package option

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QueryOption mutates a gorm statement before execution (ordering, preload, limit, ...).
type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type optionFunc func(db *gorm.DB) *gorm.DB

func (f optionFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

// OrderBy appends an ORDER BY clause.
func OrderBy(clause string) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB { return db.Order(clause) })
}

// Limit caps the number of returned rows.
func Limit(n int) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB { return db.Limit(n) })
}

// Preload eager-loads an association.
func Preload(assoc string) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB { return db.Preload(assoc) })
}

// ForUpdate locks the selected rows for the duration of the enclosing transaction.
func ForUpdate() QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		return db.Clauses(clause.Locking{Strength: "UPDATE"})
	})
}

// ForUpdateSkipLocked locks the selected rows and skips any already locked by another
// transaction, used by the scheduler and outbox drain to let concurrent workers race safely.
func ForUpdateSkipLocked() QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		return db.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
	})
}
