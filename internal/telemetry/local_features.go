package telemetry

import (
	"context"

	"github.com/petasbytes/chatloop/internal/metrics"
)

const featuresVersion = "1"

// EmitLocalFeatures measures a user turn. The size always feeds the user-turn
// histogram; the local_features event is written only when calibration mode
// and observation are both on. The text itself is never recorded.
func EmitLocalFeatures(ctx context.Context, user string) {
	f := metrics.CountFeatures(user)
	metrics.ObserveUserTurn(f)
	if !CalibrationModeEnabled() || !ObserveEnabled() {
		return
	}

	runID, _ := RunIDFromContext(ctx)
	Emit("local_features", map[string]any{
		"run_id":           runID,
		"features_version": featuresVersion,
		"user":             f.Fields(),
	})
}
