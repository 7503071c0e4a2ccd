package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/scttfrdmn/agenkit-sub000/internal/registry"
)

// registrationView is the JSON shape of /registry, independent of
// Registration's internal field layout.
type registrationView struct {
	Name          string            `json:"name"`
	Endpoint      string            `json:"endpoint"`
	Capabilities  map[string]string `json:"capabilities,omitempty"`
	RegisteredAt  time.Time         `json:"registered_at"`
	LastHeartbeat time.Time         `json:"last_heartbeat"`
}

func writeJSONRegistrations(w http.ResponseWriter, regs []registry.Registration) {
	views := make([]registrationView, 0, len(regs))
	for _, r := range regs {
		views = append(views, registrationView{
			Name:          r.Name,
			Endpoint:      r.Endpoint,
			Capabilities:  r.Capabilities,
			RegisteredAt:  r.RegisteredAt,
			LastHeartbeat: r.LastHeartbeat,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(views)
}
