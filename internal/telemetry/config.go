package telemetry

import (
	"os"
	"path/filepath"
)

var (
	calibrationModeEnabled bool
	observeEnabled         bool
)

func init() {
	// Read once at process start. Mid-run environment changes only ever switch gates on.
	calibrationModeEnabled = os.Getenv("AGT_CALIBRATION_MODE") == "1"

	// Observe: default to 1 when calibration=1 and AGT_OBSERVE_JSON is unset; honour explicit 0/1.
	if v, ok := os.LookupEnv("AGT_OBSERVE_JSON"); ok {
		observeEnabled = (v == "1")
	} else {
		observeEnabled = calibrationModeEnabled
	}
}

// CalibrationModeEnabled reports whether calibration mode is on. In calibration
// mode tools are withheld from backend requests and local text features are
// recorded for every user turn.
func CalibrationModeEnabled() bool {
	if os.Getenv("AGT_CALIBRATION_MODE") == "1" {
		return true
	}
	return calibrationModeEnabled
}

// ObserveEnabled reports whether JSONL emission is on, considering calibration defaults.
func ObserveEnabled() bool {
	if os.Getenv("AGT_OBSERVE_JSON") == "1" {
		return true
	}
	return observeEnabled
}

// ArtifactsDir is where events.jsonl is written: AGT_ARTIFACTS_DIR, else .agent.
func ArtifactsDir() string {
	if v := os.Getenv("AGT_ARTIFACTS_DIR"); v != "" {
		return filepath.Clean(v)
	}
	return ".agent"
}
