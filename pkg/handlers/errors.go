package handlers

import (
	"net/http"

	chiserver "github.com/JailtonJunior94/observable-service/pkg/http_server/chi_server"
)

var errRequestCancelled = chiserver.NewHTTPError(http.StatusServiceUnavailable, "request cancelled before completion")

func badRequest(err error) error {
	return chiserver.NewHTTPError(http.StatusBadRequest, err.Error())
}
