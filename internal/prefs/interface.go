// Package prefs persists user preferences (heating settings and the last
// applied drive mode) across restarts.
package prefs

import (
	"context"

	"codeberg.org/mutker/vehiclectl/internal/catalog"
	"codeberg.org/mutker/vehiclectl/internal/heating"
)

// Store loads and saves preferences. Load methods report ok=false when
// nothing has been saved yet.
type Store interface {
	LoadHeating(ctx context.Context) (heating.Settings, bool, error)
	SaveHeating(ctx context.Context, s heating.Settings) error
	LoadDriveMode(ctx context.Context) (catalog.DriveMode, bool, error)
	SaveDriveMode(ctx context.Context, m catalog.DriveMode) error
	Close() error
	IsEnabled() bool
}

// Repository is the key/value storage behind a Store.
type Repository interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string) error
	Close() error
}
