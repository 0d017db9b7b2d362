package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/JailtonJunior94/observable-service/pkg/health"
	chiserver "github.com/JailtonJunior94/observable-service/pkg/http_server/chi_server"
	"github.com/JailtonJunior94/observable-service/pkg/http_server/common"
	"github.com/JailtonJunior94/observable-service/pkg/observability"
	"github.com/go-chi/chi/v5"
)

// FaultHandler lets an operator force dependencies to fail so probes, alerts
// and dashboards can be exercised.
type FaultHandler struct {
	faults *health.FaultSet
	logger observability.Logger
}

func NewFaultHandler(faults *health.FaultSet, logger observability.Logger) *FaultHandler {
	return &FaultHandler{faults: faults, logger: logger}
}

// List handles GET /admin/faults.
func (h *FaultHandler) List(w http.ResponseWriter, r *http.Request) error {
	common.WriteJSON(w, http.StatusOK, map[string]any{"faults": h.faults.List()})
	return nil
}

// Set handles PUT /admin/faults/{name}. Faults are critical unless
// critical=false is given.
func (h *FaultHandler) Set(w http.ResponseWriter, r *http.Request) error {
	name := chi.URLParam(r, "name")

	critical := true
	if raw := r.URL.Query().Get("critical"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return badRequest(fmt.Errorf("critical must be true or false, got %q", raw))
		}
		critical = v
	}

	fault, err := h.faults.Set(name, critical, r.URL.Query().Get("message"))
	switch {
	case errors.Is(err, health.ErrReservedCheck):
		return chiserver.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, health.ErrInvalidCheck):
		return badRequest(err)
	case err != nil:
		return err
	}

	h.logger.Warn(r.Context(), "fault injected",
		observability.String("dependency", name),
		observability.Bool("critical", critical),
	)
	common.WriteJSON(w, http.StatusOK, fault)
	return nil
}

// Clear handles DELETE /admin/faults/{name}.
func (h *FaultHandler) Clear(w http.ResponseWriter, r *http.Request) error {
	name := chi.URLParam(r, "name")
	if !h.faults.Clear(name) {
		return chiserver.NewHTTPError(http.StatusNotFound, fmt.Sprintf("no fault set for %q", name))
	}

	h.logger.Info(r.Context(), "fault cleared", observability.String("dependency", name))
	w.WriteHeader(http.StatusNoContent)
	return nil
}
