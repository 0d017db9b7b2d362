package chiserver

import "github.com/go-chi/chi/v5"

// Router registers a group of application routes. Paths registered through
// chi patterns are reported as-is in metric labels.
type Router interface {
	Register(router chi.Router)
}
