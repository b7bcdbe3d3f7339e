package storage

import (
	"context"
	"log/slog"

	"paluwagan/internal/core"
)

// DecodeObserver is told about every field a store had to default while
// decoding a record.
type DecodeObserver interface {
	ObserveDecodeDefaults(entity string, diags core.Diagnostics)
}

// ReportDiagnostics logs decode defaults at debug level and forwards them to
// obs when one is configured.
func ReportDiagnostics(ctx context.Context, obs DecodeObserver, entity, id string, diags core.Diagnostics) {
	if len(diags) == 0 {
		return
	}
	for _, d := range diags {
		slog.DebugContext(ctx, "Record field defaulted on decode",
			"entity", d.Entity,
			"record_id", id,
			"field", d.Field,
			"reason", string(d.Reason))
	}
	if obs != nil {
		obs.ObserveDecodeDefaults(entity, diags)
	}
}
