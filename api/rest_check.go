package api

import (
	"net/http"
	"time"

	"catalog-services/helpers"
)

// HealthCheck reports worker liveness without touching the datastore.
func (api *API) HealthCheck(w http.ResponseWriter, r *http.Request) (int, error) {
	return helpers.EncodeJSON(w, struct {
		Status    string    `json:"status"`
		Timestamp time.Time `json:"timestamp"`
	}{
		Status:    "healthy",
		Timestamp: time.Now(),
	})
}
