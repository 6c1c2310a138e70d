package observability

import (
	"context"
	"encoding/json"
	"net/http"
)

// Health statuses.
const (
	healthStatusOK          = "ok"
	healthStatusUnavailable = "unavailable"
)

// ReadyCheck probes one subsystem. It returns nil when healthy.
type ReadyCheck func(ctx context.Context) error

// NamedCheck pairs a component name with its probe.
type NamedCheck struct {
	Name  string
	Check ReadyCheck
}

// HealthHandler serves liveness plus per-component checks. Any failing
// check turns the response into 503.
func HealthHandler(checks ...NamedCheck) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, hr *http.Request) {
		status := healthStatusOK
		components := make(map[string]string, len(checks))

		for _, c := range checks {
			if err := c.Check(hr.Context()); err != nil {
				status = healthStatusUnavailable
				components[c.Name] = err.Error()

				continue
			}

			components[c.Name] = healthStatusOK
		}

		rw.Header().Set("Content-Type", "application/json")

		if status != healthStatusOK {
			rw.WriteHeader(http.StatusServiceUnavailable)
		}

		body := map[string]any{"status": status}
		if len(components) > 0 {
			body["checks"] = components
		}

		data, err := json.Marshal(body)
		if err != nil {
			return
		}

		if _, writeErr := rw.Write(data); writeErr != nil {
			return
		}
	})
}
