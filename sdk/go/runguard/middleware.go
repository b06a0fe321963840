package runguard

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/runguard/runguard/internal/validate"
)

// Middleware returns an http.Handler that validates agent-supplied request
// values before passing to the next handler. Every query parameter value
// passes the AgentInput gate; requests carrying a rejected value receive a
// 400 with a JSON body naming the kind and parameter.
func (c *Client) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := validateQuery(r); err != nil {
			resp := map[string]any{
				"blocked": true,
				"reason":  err.Error(),
			}
			var ve *ValidationError
			if errors.As(err, &ve) {
				resp["kind"] = string(ve.Kind)
				resp["param"] = ve.Param
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(resp)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// validateQuery applies AgentInput to every query parameter value.
func validateQuery(r *http.Request) error {
	for name, values := range r.URL.Query() {
		for _, v := range values {
			if err := validate.AgentInput(v, name); err != nil {
				return err
			}
		}
	}
	return nil
}
