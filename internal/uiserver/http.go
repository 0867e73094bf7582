package uiserver

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"stationfleet/internal/controlbus"
)

// newRouter builds the HTTP side of the control plane, grounded on the
// teacher's api-gateway/internal/http/router.go composition style but
// using gorilla/mux for the "/ui/{version}/{procedure}" path variables
// spec.md §6 names, rather than the teacher's flat http.ServeMux.
func (s *Server) newRouter() http.Handler {
	r := mux.NewRouter()

	control := r.PathPrefix("/ui/{version}/").Subrouter()
	control.HandleFunc("/{procedure}", s.handleControlHTTP).Methods(http.MethodPost)
	if mw := authenticate(s.cfg.Auth); mw != nil {
		control.Use(mw)
	}

	r.HandleFunc("/", s.handleRoot)
	r.PathPrefix("/").HandlerFunc(s.handleStatic)

	return r
}

// handleControlHTTP implements spec.md §4.6's HTTP transport: POST only,
// JSON body is the payload, response body is {status, ...}, status maps
// to 200/400/500.
func (s *Server) handleControlHTTP(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	procedure := strings.ToUpper(vars["procedure"])

	var payload map[string]interface{}
	if r.Body != nil {
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && err.Error() != "EOF" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"status":       controlbus.StatusFailure,
				"errorMessage": "invalid JSON body",
			})
			return
		}
	}

	req := controlbus.Request{
		UUID:      uuid.NewString(),
		Procedure: procedure,
		Payload:   payload,
		HashIds:   hashIdsFromPayload(payload),
	}

	out := dispatch(r.Context(), s.bus, req)
	status, _ := out["status"].(string)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode(status))
	if err := json.NewEncoder(w).Encode(out); err != nil {
		s.logger.Warn("uiserver: encode response failed", zap.Error(err))
	}
}

func hashIdsFromPayload(payload map[string]interface{}) []string {
	if payload == nil {
		return nil
	}
	if raw, ok := payload["hashIds"].([]interface{}); ok {
		out := make([]string, 0, len(raw))
		for _, v := range raw {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	if single, ok := payload["hashId"].(string); ok && single != "" {
		return []string{single}
	}
	return nil
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/index.html", http.StatusFound)
}

// handleStatic serves the operator UI bundle, falling back from ./dist/ to
// ./dist/dist/ and finally 404, per spec.md §6's static asset fallback.
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	clean := filepath.Clean(r.URL.Path)
	for _, root := range []string{"dist", filepath.Join("dist", "dist")} {
		full := filepath.Join(root, clean)
		if info, err := os.Stat(full); err == nil && !info.IsDir() {
			http.ServeFile(w, r, full)
			return
		}
	}
	http.NotFound(w, r)
}
