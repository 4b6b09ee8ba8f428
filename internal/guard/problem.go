package guard

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/bassci/bass/internal/svcerr"
)

// writeProblem writes an RFC 9457 Problem Details JSON response for the given
// ServiceError. CORS and MaxBody do not call it; MaxBody writes its own
// JSON error body.
func writeProblem(w http.ResponseWriter, r *http.Request, svcErr *svcerr.ServiceError) {
	pd := svcErr.ProblemDetail(r)
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(svcErr.HTTPCode)
	if err := json.NewEncoder(w).Encode(pd); err != nil {
		slog.ErrorContext(r.Context(), "guard: failed to encode problem detail", "error", err)
	}
}
