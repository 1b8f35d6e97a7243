package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestScalarHandler_EscapesMetadata(t *testing.T) {
	h := ScalarHandler("/openapi.json", "Teamsheet <API>", "it's messaging")

	req := httptest.NewRequest(http.MethodGet, "/docs", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("unexpected content type %q", ct)
	}

	body := w.Body.String()
	if !strings.Contains(body, `data-url="/openapi.json"`) {
		t.Error("spec url missing from page")
	}
	if strings.Contains(body, "Teamsheet <API>") {
		t.Error("title was not escaped")
	}
	if !strings.Contains(body, `"theme":"default"`) {
		t.Error("configuration not rendered as JSON")
	}
}
