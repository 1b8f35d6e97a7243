package api

import (
	"bytes"
	"html/template"
	"net/http"
)

// scalarConfig is serialised into the page and read by the Scalar bundle.
type scalarConfig struct {
	Theme      string         `json:"theme"`
	Layout     string         `json:"layout"`
	DarkMode   bool           `json:"darkMode"`
	HideModels bool           `json:"hideModels"`
	MetaData   scalarMetaData `json:"metaData"`
}

type scalarMetaData struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

var scalarPage = template.Must(template.New("scalar").Parse(`<!DOCTYPE html>
<html>
<head>
	<title>{{.Title}} - API Documentation</title>
	<meta charset="utf-8" />
	<meta name="viewport" content="width=device-width, initial-scale=1" />
	<style>body { margin: 0; }</style>
</head>
<body>
	<script id="api-reference" data-url="{{.SpecURL}}"></script>
	<script>
		var configuration = {{.Config}};
		configuration.servers = [{ url: window.location.origin, description: 'Current server' }];
		document.getElementById('api-reference').dataset.configuration = JSON.stringify(configuration);
	</script>
	<script src="https://cdn.jsdelivr.net/npm/@scalar/api-reference"></script>
</body>
</html>`))

// ScalarHandler serves the Scalar API reference for the OpenAPI document at specURL.
// The page is rendered once; title and description are escaped by html/template.
func ScalarHandler(specURL, title, description string) http.Handler {
	var buf bytes.Buffer
	err := scalarPage.Execute(&buf, struct {
		Title   string
		SpecURL string
		Config  scalarConfig
	}{
		Title:   title,
		SpecURL: specURL,
		Config: scalarConfig{
			Theme:    "default",
			Layout:   "modern",
			MetaData: scalarMetaData{Title: title, Description: description},
		},
	})
	page := buf.Bytes()

	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if err != nil {
			http.Error(w, "docs unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(page)
	})
}
