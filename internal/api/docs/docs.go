// Package docs serves the Arcade OpenAPI document and a Swagger UI page for
// the storefront and management APIs.
package docs

import (
	"embed"
	"io/fs"
	"net/http"
)

// SpecFile is the OpenAPI document, relative to the docs mount point.
const SpecFile = "openapi.yaml"

//go:embed index.html openapi.yaml
var assets embed.FS

// Handler serves the Swagger UI at its root and the document at SpecFile.
// The document is sent as YAML so clients other than the UI can fetch it.
func Handler() http.Handler {
	sub, err := fs.Sub(assets, ".")
	if err != nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "swagger assets not available", http.StatusInternalServerError)
		})
	}

	files := http.FileServer(http.FS(sub))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == SpecFile {
			w.Header().Set("Content-Type", "application/yaml")
		}
		files.ServeHTTP(w, r)
	})
}
