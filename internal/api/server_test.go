package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/infblueocean/newsriver/internal/store"
)

func newTestServer(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s, err := store.Open(":memory:", 1)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return NewServer(s, "testtoken").Router()
}

func do(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer testtoken")
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequiresToken(t *testing.T) {
	r := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/publishers", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d without token, want 401", w.Code)
	}

	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d with bad token, want 401", w.Code)
	}
}

func TestHealthzOpen(t *testing.T) {
	r := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", w.Code)
	}
}

func TestPublisherLifecycle(t *testing.T) {
	r := newTestServer(t)

	w := do(t, r, http.MethodPost, "/api/v1/publishers",
		`{"name":"Example News","site_url":"https://example.com","enabled":true}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", w.Code, w.Body)
	}
	var created store.Publisher
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	id := strconv.FormatInt(created.ID, 10)

	w = do(t, r, http.MethodGet, "/api/v1/publishers/"+id, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}

	w = do(t, r, http.MethodPut, "/api/v1/publishers/"+id,
		`{"name":"Renamed","site_url":"https://example.com","enabled":false}`)
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", w.Code, w.Body)
	}

	w = do(t, r, http.MethodGet, "/api/v1/publishers", "")
	var all []store.Publisher
	if err := json.Unmarshal(w.Body.Bytes(), &all); err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].Name != "Renamed" {
		t.Errorf("list = %+v", all)
	}

	w = do(t, r, http.MethodDelete, "/api/v1/publishers/"+id, "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	w = do(t, r, http.MethodGet, "/api/v1/publishers/"+id, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", w.Code)
	}
}

func TestFeedEndpoints(t *testing.T) {
	r := newTestServer(t)

	w := do(t, r, http.MethodPost, "/api/v1/publishers",
		`{"name":"Example","site_url":"https://example.com","enabled":true}`)
	var pub store.Publisher
	if err := json.Unmarshal(w.Body.Bytes(), &pub); err != nil {
		t.Fatal(err)
	}
	id := strconv.FormatInt(pub.ID, 10)

	w = do(t, r, http.MethodPost, "/api/v1/publishers/"+id+"/feeds",
		`{"url":"https://example.com/rss","enabled":true}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create feed status = %d: %s", w.Code, w.Body)
	}

	w = do(t, r, http.MethodGet, "/api/v1/publishers/"+id+"/feeds", "")
	var feeds []store.Feed
	if err := json.Unmarshal(w.Body.Bytes(), &feeds); err != nil {
		t.Fatal(err)
	}
	if len(feeds) != 1 || feeds[0].URL != "https://example.com/rss" {
		t.Errorf("feeds = %+v", feeds)
	}

	w = do(t, r, http.MethodDelete, "/api/v1/feeds/"+strconv.FormatInt(feeds[0].ID, 10), "")
	if w.Code != http.StatusNoContent {
		t.Errorf("delete feed status = %d", w.Code)
	}
}

func TestChannelAndLocaleEndpoints(t *testing.T) {
	r := newTestServer(t)

	if w := do(t, r, http.MethodPost, "/api/v1/channels", `{"name":"Top News"}`); w.Code != http.StatusCreated {
		t.Fatalf("create channel status = %d", w.Code)
	}
	if w := do(t, r, http.MethodPost, "/api/v1/channels", `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("create channel without name status = %d, want 400", w.Code)
	}
	if w := do(t, r, http.MethodPost, "/api/v1/locales", `{"name":"en_US"}`); w.Code != http.StatusCreated {
		t.Fatalf("create locale status = %d", w.Code)
	}

	w := do(t, r, http.MethodGet, "/api/v1/locales", "")
	var locales []store.Locale
	if err := json.Unmarshal(w.Body.Bytes(), &locales); err != nil {
		t.Fatal(err)
	}
	if len(locales) != 1 || locales[0].Name != "en_US" {
		t.Errorf("locales = %+v", locales)
	}
}

func TestInvalidIDParam(t *testing.T) {
	r := newTestServer(t)
	w := do(t, r, http.MethodGet, "/api/v1/publishers/notanid", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}
