package openapi

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
)

// HandleConfig configures the endpoints registered by Handle.
// JSON and YAML endpoints serve the serialized OpenAPI Document.
//
// See: https://spec.openapis.org/oas/v3.0.3#openapi-document
type HandleConfig struct {
	// JSONFilename is the path for the JSON document endpoint
	// (default: "openapi.json"). Set to "-" to disable.
	//
	// Relative paths are joined with the base path:
	//
	//	"openapi.json"      -> <basePath>/openapi.json
	//	"data/openapi.json" -> <basePath>/data/openapi.json
	//
	// Absolute paths (starting with "/") are used as-is:
	//
	//	"/api/v1/openapi.json" -> /api/v1/openapi.json
	JSONFilename string

	// YAMLFilename is the path for the YAML document endpoint
	// (default: "openapi.yaml"). Set to "-" to disable.
	// Follows the same absolute/relative rules as JSONFilename.
	YAMLFilename string
}

// jsonFilename returns the configured JSON filename, defaulting to "openapi.json".
func (cfg HandleConfig) jsonFilename() string {
	if cfg.JSONFilename == "" {
		return "openapi.json"
	}
	return cfg.JSONFilename
}

// yamlFilename returns the configured YAML filename, defaulting to "openapi.yaml".
func (cfg HandleConfig) yamlFilename() string {
	if cfg.YAMLFilename == "" {
		return "openapi.yaml"
	}
	return cfg.YAMLFilename
}

// resolvePath returns the full route path for a filename.
// Absolute filenames (starting with "/") are returned as-is.
// Relative filenames are joined under basePath.
func resolvePath(basePath, filename string) string {
	if strings.HasPrefix(filename, "/") {
		return filename
	}
	if basePath == "" {
		return "/" + filename
	}
	return basePath + "/" + filename
}

// compiled caches the serialized document. The spec is built on first
// request and never rebuilt.
type compiled struct {
	once     sync.Once
	jsonData []byte
	yamlData []byte
	err      error
}

func (c *compiled) load(s *Spec) error {
	c.once.Do(func() {
		doc, err := s.Build()
		if err != nil {
			c.err = err
			return
		}
		if c.jsonData, c.err = doc.JSON(); c.err != nil {
			return
		}
		c.yamlData, c.err = doc.YAML()
	})
	return c.err
}

// Handle registers GET endpoints serving the compiled document under the
// given base path. The base path is normalized (trailing slash stripped).
// The config parameter is optional; pass nil for defaults:
//
//	spec.Handle(mux, "/docs", nil)
//	// /docs/openapi.json -> JSON document
//	// /docs/openapi.yaml -> YAML document
//
// A document that fails to build is logged and answered with 500.
//
// See: https://spec.openapis.org/oas/v3.0.3#openapi-document
func (s *Spec) Handle(mux *http.ServeMux, basePath string, cfg *HandleConfig) {
	if cfg == nil {
		cfg = &HandleConfig{}
	}
	basePath = strings.TrimRight(basePath, "/")

	c := &compiled{}

	if file := cfg.jsonFilename(); file != "-" {
		mux.HandleFunc("GET "+resolvePath(basePath, file), func(w http.ResponseWriter, r *http.Request) {
			s.serve(w, r, c, "application/json", func() []byte { return c.jsonData })
		})
	}

	if file := cfg.yamlFilename(); file != "-" {
		mux.HandleFunc("GET "+resolvePath(basePath, file), func(w http.ResponseWriter, r *http.Request) {
			s.serve(w, r, c, "application/x-yaml", func() []byte { return c.yamlData })
		})
	}
}

func (s *Spec) serve(w http.ResponseWriter, r *http.Request, c *compiled, contentType string, data func() []byte) {
	if err := c.load(s); err != nil {
		s.logger.Error("openapi document build failed",
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
		http.Error(w, "failed to build OpenAPI document", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data())
}
