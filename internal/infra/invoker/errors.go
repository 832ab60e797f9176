package invoker

import (
	"fmt"
)

// RemoteError preserves the structured error payload a backend returned with
// a non-2xx status. It is nested as the cause of the ServiceError so callers
// can inspect the original error description.
type RemoteError struct {
	Status  int
	Payload map[string]any
}

// Error returns the remote error description. The extraction service reports
// failures as {"detail": "..."}, which is surfaced directly when present.
func (e *RemoteError) Error() string {
	if detail, ok := e.Payload["detail"].(string); ok && detail != "" {
		return fmt.Sprintf("remote service error (status %d): %s", e.Status, detail)
	}
	return fmt.Sprintf("remote service error (status %d)", e.Status)
}
