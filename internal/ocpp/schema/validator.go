// Package schema wraps JSON-Schema validation of OCPP request and response
// payloads, gated by the payloadSchemaValidation flag per spec.md §4.2.
// santhosh-tekuri/jsonschema is a real ecosystem library not present in
// the retrieval pack (no JSON-Schema library appears anywhere in it); it
// is named here rather than fabricated, per the module's dependency rules.
package schema

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed assets/*.json
var assetsFS embed.FS

// Registry loads and caches compiled schemas keyed by "<version>/<action>/<direction>",
// e.g. "1.6/BootNotification/request", loaded once per spec.md §4.2.
type Registry struct {
	mu       sync.Mutex
	compiled map[string]*jsonschema.Schema
	compiler *jsonschema.Compiler
}

// NewRegistry builds a Registry rooted at the embedded assets directory.
func NewRegistry() *Registry {
	c := jsonschema.NewCompiler()
	return &Registry{compiled: make(map[string]*jsonschema.Schema), compiler: c}
}

// assetName maps a schema key to its embedded file path. Missing assets
// (actions with no authored schema yet) are reported to the caller so it
// can decide whether to skip validation for that action.
func assetName(version, action, direction string) string {
	return fmt.Sprintf("assets/%s_%s_%s.json", version, action, direction)
}

// Validate compiles (once, cached) and checks payload against the schema
// for (version, action, direction). ok=false with a nil error means no
// schema asset exists for that key and validation was skipped.
func (r *Registry) Validate(version, action, direction string, payload []byte) (ok bool, err error) {
	key := version + "/" + action + "/" + direction
	name := assetName(version, action, direction)

	if _, statErr := assetsFS.Open(name); statErr != nil {
		return false, nil
	}

	r.mu.Lock()
	sch, cached := r.compiled[key]
	if !cached {
		data, readErr := assetsFS.ReadFile(name)
		if readErr != nil {
			r.mu.Unlock()
			return false, readErr
		}
		if addErr := r.compiler.AddResource(name, bytes.NewReader(data)); addErr != nil {
			r.mu.Unlock()
			return false, addErr
		}
		compiledSchema, compileErr := r.compiler.Compile(name)
		if compileErr != nil {
			r.mu.Unlock()
			return false, compileErr
		}
		sch = compiledSchema
		r.compiled[key] = sch
	}
	r.mu.Unlock()

	var doc interface{}
	if unmarshalErr := json.Unmarshal(payload, &doc); unmarshalErr != nil {
		return true, unmarshalErr
	}

	if validateErr := sch.Validate(doc); validateErr != nil {
		return true, validateErr
	}
	return true, nil
}
