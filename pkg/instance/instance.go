package instance

import (
	"os"

	"github.com/angelmondragon/groupbuy-backend/pkg/env"
)

// ID identifies this process in logs. Platform dyno names win over an
// explicit WORKER_ID, which wins over the hostname.
func ID() string {
	if id, ok := env.Lookup("DYNO", "WORKER_ID"); ok {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
