package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"git.cscs.ch/openchami/chamicore-sqlgate/internal/httputil"
)

// Router assembles the middleware chain and the validation route.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(httputil.RequestID)
	r.Use(httputil.RequestLogger(s.logger))
	r.Use(httputil.Recoverer)
	r.Use(httputil.BodyLimit(maxBodyBytes))
	r.Use(httputil.Timeout(s.timeout))
	r.Use(httputil.APIVersion("sqlgate/v1"))

	r.Post("/", s.handleValidate)

	return r
}
