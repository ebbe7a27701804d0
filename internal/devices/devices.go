// Package devices remembers which client installations have launched before.
package devices

import (
	"context"
	"strings"

	"rollcall/internal/common"
	"rollcall/internal/dbx"
)

// Registry records devices in Postgres.
type Registry struct {
	db dbx.DBTX
}

func NewRegistry(db dbx.DBTX) *Registry {
	return &Registry{db: db}
}

// Register records deviceID and reports whether this is its first launch.
func (r *Registry) Register(ctx context.Context, deviceID string) (bool, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return false, common.NewValidationError(common.FieldError{Field: "device_id", Error: "is required"})
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (device_id)
		VALUES ($1)
		ON CONFLICT (device_id) DO NOTHING
	`, deviceID)
	if err != nil {
		return false, dbx.Classify("register device", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, dbx.Classify("register device", err)
	}
	return n == 1, nil
}
