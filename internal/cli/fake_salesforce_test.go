package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

const fakeAccessToken = "00Dfake!token"

type createdRecord struct {
	ObjectType string
	Fields     map[string]any
}

// fakeSalesforce serves the token, query, blob and create endpoints of one org.
type fakeSalesforce struct {
	server *httptest.Server

	mu          sync.Mutex
	tokenStatus int
	parents     []map[string]any
	attachments []map[string]any
	bodies      map[string][]byte
	created     []createdRecord
	nextID      int
}

func newFakeSalesforce(t *testing.T) *fakeSalesforce {
	t.Helper()

	f := &fakeSalesforce{tokenStatus: http.StatusOK, bodies: map[string][]byte{}}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /services/oauth2/token", f.handleToken)
	mux.HandleFunc("GET /services/data/v50.0/query", f.authorized(f.handleQuery))
	mux.HandleFunc("GET /services/data/v50.0/sobjects/Attachment/{id}/Body", f.authorized(f.handleBody))
	mux.HandleFunc("POST /services/data/v50.0/sobjects/{type}/", f.authorized(f.handleCreate))

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeSalesforce) URL() string {
	return f.server.URL
}

func (f *fakeSalesforce) addParent(objectType, id, name string) {
	f.parents = append(f.parents, map[string]any{
		"attributes": map[string]any{"type": objectType, "url": "/services/data/v50.0/sobjects/" + objectType + "/" + id},
		"Id":         id,
		"Name":       name,
	})
}

func (f *fakeSalesforce) addAttachment(id, parentID, name, contentType string, body []byte) {
	f.attachments = append(f.attachments, map[string]any{
		"attributes":  map[string]any{"type": "Attachment"},
		"Id":          id,
		"Name":        name,
		"Description": "",
		"ParentId":    parentID,
		"ContentType": contentType,
	})
	f.bodies[id] = body
}

func (f *fakeSalesforce) createdOf(objectType string) []createdRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []createdRecord
	for _, c := range f.created {
		if c.ObjectType == objectType {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeSalesforce) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+fakeAccessToken {
			writeJSON(w, http.StatusUnauthorized, []map[string]string{{"errorCode": "INVALID_SESSION_ID"}})
			return
		}
		next(w, r)
	}
}

func (f *fakeSalesforce) handleToken(w http.ResponseWriter, r *http.Request) {
	if f.tokenStatus != http.StatusOK {
		writeJSON(w, f.tokenStatus, map[string]string{"error": "invalid_grant", "error_description": "authentication failure"})
		return
	}
	if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "password" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"access_token": fakeAccessToken,
		"instance_url": f.server.URL,
		"token_type":   "Bearer",
	})
}

func (f *fakeSalesforce) handleQuery(w http.ResponseWriter, r *http.Request) {
	rows := f.parents
	if strings.Contains(r.URL.Query().Get("q"), "FROM Attachment") {
		rows = f.attachments
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"totalSize": len(rows), "done": true, "records": rows})
}

func (f *fakeSalesforce) handleBody(w http.ResponseWriter, r *http.Request) {
	body, ok := f.bodies[r.PathValue("id")]
	if !ok {
		writeJSON(w, http.StatusNotFound, []map[string]string{{"errorCode": "NOT_FOUND"}})
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(body)
}

func (f *fakeSalesforce) handleCreate(w http.ResponseWriter, r *http.Request) {
	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeJSON(w, http.StatusBadRequest, []map[string]string{{"errorCode": "JSON_PARSER_ERROR"}})
		return
	}

	f.mu.Lock()
	f.nextID++
	id := fmt.Sprintf("NEW%03d", f.nextID)
	f.created = append(f.created, createdRecord{ObjectType: r.PathValue("type"), Fields: fields})
	f.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{"id": id, "success": true, "errors": []any{}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
