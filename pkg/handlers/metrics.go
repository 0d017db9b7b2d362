package handlers

import (
	"net/http"

	"github.com/JailtonJunior94/observable-service/pkg/http_server/common"
	"github.com/JailtonJunior94/observable-service/pkg/metrics"
)

// MetricsHandler serves the JSON view of the metrics used by the dashboard.
type MetricsHandler struct {
	recorder *metrics.Recorder
}

func NewMetricsHandler(recorder *metrics.Recorder) *MetricsHandler {
	return &MetricsHandler{recorder: recorder}
}

// GetMetricsJSON handles GET /metrics-json.
func (h *MetricsHandler) GetMetricsJSON(w http.ResponseWriter, r *http.Request) error {
	summary, err := h.recorder.Summary(r.Context())
	if err != nil {
		return err
	}

	common.WriteJSON(w, http.StatusOK, summary)
	return nil
}
