package guard

import (
	"encoding/json"
	"net/http"
)

// MaxBody returns middleware that rejects requests with a body exceeding
// maxBytes with 413 Payload Too Large. The orchestrator applies this to
// /webhook and /dequeue, which otherwise decode an unbounded request body.
func MaxBody(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusRequestEntityTooLarge)
				json.NewEncoder(w).Encode(map[string]any{
					"error":  "request body too large",
					"status": http.StatusRequestEntityTooLarge,
				})
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
