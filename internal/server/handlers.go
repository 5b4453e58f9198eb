package server

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"git.cscs.ch/openchami/chamicore-sqlgate/internal/httputil"
	"git.cscs.ch/openchami/chamicore-sqlgate/pkg/types"
)

// handleValidate decodes a validation request, runs it through the gate and
// writes the decision. Every failure, an unreadable body included, surfaces
// as 500 with an {"error": ...} payload; callers on the socket treat
// transport and handler faults alike.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req types.ValidationRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("invalid request body")
		httputil.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	result, err := s.gate.Validate(r.Context(), req)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("validation failed")
		httputil.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	httputil.RespondJSON(w, http.StatusOK, result)
}
