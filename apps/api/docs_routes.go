package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/harmony-hq/harmony/platform/go/httpx"
)

// StandaloneLayout renders its own picker from urls.
const swaggerUITemplate = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>Harmony API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-standalone-preset.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        urls: __URLS__,
        dom_id: '#swagger-ui',
        persistAuthorization: true,
        docExpansion: 'list',
        presets: [SwaggerUIBundle.presets.apis, SwaggerUIStandalonePreset],
        layout: 'StandaloneLayout'
      });
    </script>
  </body>
</html>`

type docLink struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// registerDocsRoutes serves the Swagger UI at /docs and each contract at /openapi/{name}.json.
// Contracts are rendered once; one that cannot be marshalled is left out and logged.
func registerDocsRoutes(router chi.Router, specs map[string]*openapi3.T, logger *zap.Logger) {
	rendered := make(map[string][]byte, len(specs))
	for name, spec := range specs {
		raw, err := spec.MarshalJSON()
		if err != nil {
			logger.Error("render openapi contract", zap.String("name", name), zap.Error(err))
			continue
		}
		rendered[name] = raw
	}

	router.Get("/docs", docsUIHandler(rendered, logger))
	router.Get("/openapi/{name}.json", openapiJSONHandler(rendered))
}

func docsUIHandler(rendered map[string][]byte, logger *zap.Logger) http.HandlerFunc {
	links, err := json.Marshal(docLinks(rendered))
	if err != nil {
		logger.Error("render docs links", zap.Error(err))
		links = []byte("[]")
	}
	page := []byte(strings.Replace(swaggerUITemplate, "__URLS__", string(links), 1))
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(page)
	}
}

func openapiJSONHandler(rendered map[string][]byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		raw, ok := rendered[name]
		if !ok {
			httpx.WriteProblem(w, httpx.Problem{
				Type:   httpx.ProblemTypeNotFound,
				Title:  "Not Found",
				Status: http.StatusNotFound,
				Detail: fmt.Sprintf("no contract named %q", name),
			})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(raw)
	}
}

func docLinks(rendered map[string][]byte) []docLink {
	names := make([]string, 0, len(rendered))
	for name := range rendered {
		names = append(names, name)
	}
	sort.Strings(names)

	links := make([]docLink, 0, len(names))
	for _, name := range names {
		links = append(links, docLink{URL: "/openapi/" + name + ".json", Name: name})
	}
	return links
}
