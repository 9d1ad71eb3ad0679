package models

import (
	"context"
	"time"
)

// AppLock represents a distributed lock in the database.
// Background jobs take one so only a single instance runs them at a time.
type AppLock struct {
	LockName   string `gorm:"primaryKey;size:255"`
	InstanceID string `gorm:"size:255;not null"`
	AcquiredAt int64  `gorm:"not null;index"`
	ExpiresAt  int64  `gorm:"not null;index"`
}

// TableName specifies the table name for GORM
func (AppLock) TableName() string {
	return "app_locks"
}

type LockRepository interface {
	// Acquire takes the lock if it is free, expired, or already held by
	// instanceID. It reports whether the caller now holds it.
	Acquire(ctx context.Context, name, instanceID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name, instanceID string) error
}
