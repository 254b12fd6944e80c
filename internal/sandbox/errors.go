// Package sandbox confines tool file access to configured read and write roots.
package sandbox

import "encoding/json"

// Error codes returned to the model inside ToolError.
const (
	CodeOutsideSandbox = "ERR_PATH_OUTSIDE_SANDBOX"
	CodeDeniedRead     = "ERR_DENIED_READ"
	CodeDeniedWrite    = "ERR_DENIED_WRITE"
	CodeNotAFile       = "ERR_NOT_A_FILE"
)

// ToolError is a machine-readable error the model can act on.
type ToolError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error is compact single-line JSON so tool results stay small.
func (e ToolError) Error() string {
	b, _ := json.Marshal(e)
	return string(b)
}
