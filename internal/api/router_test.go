package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Rrens/docqa/internal/api/handler"
	"github.com/Rrens/docqa/internal/config"
	"github.com/Rrens/docqa/internal/domain"
	"github.com/Rrens/docqa/internal/qaclient"
	"github.com/Rrens/docqa/internal/security"
	"github.com/Rrens/docqa/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-gateway-tests"

// fakeQA imitates the document QA service
type fakeQA struct {
	mu      sync.Mutex
	docs    []map[string]any
	history []map[string]any
	deleted []string
	nextID  int
}

func newFakeQA(t *testing.T) *httptest.Server {
	f := &fakeQA{
		docs:   []map[string]any{{"id": 7, "file": "/media/documents/report.pdf", "uploaded_at": "2024-01-01T00:00:00Z"}},
		nextID: 100,
	}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return srv
}

func (f *fakeQA) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/qa/")
	w.Header().Set("Content-Type", "application/json")

	if path == "login/" {
		var in struct{ Username, Password string }
		json.NewDecoder(r.Body).Decode(&in)
		if in.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "Invalid credentials"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"token": "tok-" + in.Username})
		return
	}

	if !strings.HasPrefix(r.Header.Get("Authorization"), "Token tok-") {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"detail": "Invalid token."})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case path == "history/" && r.Method == http.MethodGet:
		json.NewEncoder(w).Encode(f.history)
	case path == "documents/" && r.Method == http.MethodGet:
		json.NewEncoder(w).Encode(f.docs)
	case path == "qa/" && r.Method == http.MethodPost:
		var in struct {
			Question   string `json:"question"`
			DocumentID int    `json:"document_id"`
		}
		json.NewDecoder(r.Body).Decode(&in)
		f.nextID++
		f.history = append([]map[string]any{{
			"id":         f.nextID,
			"document":   map[string]any{"id": in.DocumentID},
			"question":   in.Question,
			"answer":     "42",
			"created_at": time.Now().UTC().Format(time.RFC3339Nano),
		}}, f.history...)
		json.NewEncoder(w).Encode(map[string]any{"answer": "42"})
	case path == "upload/" && r.Method == http.MethodPost:
		file, header, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string][]string{"file": {"No file was submitted."}})
			return
		}
		file.Close()
		f.nextID++
		doc := map[string]any{"id": f.nextID, "file": "/media/documents/" + header.Filename, "uploaded_at": time.Now().UTC().Format(time.RFC3339)}
		f.docs = append(f.docs, doc)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(doc)
	case strings.HasPrefix(path, "documents/") && r.Method == http.MethodDelete:
		id := strings.TrimSuffix(strings.TrimPrefix(path, "documents/"), "/")
		f.deleted = append(f.deleted, id)
		for i, d := range f.docs {
			if fmt.Sprint(d["id"]) == id {
				f.docs = append(f.docs[:i], f.docs[i+1:]...)
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"detail": "Not found."})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type gateway struct {
	handler  http.Handler
	sessions *session.Registry
}

func newGateway(t *testing.T, qaURL string) *gateway {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{
			RequestTimeout: 10 * time.Second,
			AllowedOrigins: []string{"*"},
			MaxUploadBytes: 1 << 20,
		},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}

	qa := qaclient.New(qaclient.Config{BaseURL: qaURL + "/api/qa", Timeout: 5 * time.Second})
	sealer, err := security.NewSealer(testSecret)
	require.NoError(t, err)
	sessions := session.NewRegistry(time.Hour)
	t.Cleanup(sessions.Shutdown)

	deps := Deps{
		Sessions:   sessions,
		JWTManager: security.NewJWTManager(testSecret, time.Hour),
		Sealer:     sealer,
		NewController: func() *session.Controller {
			return session.NewController(qa, func(u domain.User) domain.QAService {
				return qa.WithToken(u.Token)
			}, session.Options{MergeDelay: time.Hour, CallTimeout: 5 * time.Second})
		},
	}
	return &gateway{handler: NewRouter(cfg, deps), sessions: sessions}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   json.RawMessage `json:"error"`
}

func (g *gateway) do(t *testing.T, method, path, token string, body io.Reader, contentType string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	g.handler.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	}
	return rec.Code, env
}

func (g *gateway) json(t *testing.T, method, path, token string, payload any) (int, envelope) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	}
	return g.do(t, method, path, token, body, "application/json")
}

func (g *gateway) login(t *testing.T) string {
	t.Helper()
	code, env := g.json(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "alice", "password": "secret"})
	require.Equal(t, http.StatusOK, code, string(env.Error))

	var tok handler.TokenResponse
	require.NoError(t, json.Unmarshal(env.Data, &tok))
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.Equal(t, "alice", tok.User.Username)
	assert.Equal(t, int64(3600), tok.ExpiresIn)
	require.NotEmpty(t, tok.AccessToken)
	return tok.AccessToken
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

type turnView struct {
	Kind     string              `json:"kind"`
	State    string              `json:"state"`
	EntryID  string              `json:"entry_id"`
	Answer   *domain.Answer      `json:"answer"`
	Document *domain.DocumentRef `json:"document"`
	Error    string              `json:"error"`
}

func TestRouter_Health(t *testing.T) {
	g := newGateway(t, newFakeQA(t).URL)

	code, env := g.json(t, http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"ok"}`, string(env.Data))

	code, env = g.json(t, http.MethodGet, "/api/v1/ready", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"ready"}`, string(env.Data))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	g.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_Login(t *testing.T) {
	g := newGateway(t, newFakeQA(t).URL)

	t.Run("missing fields", func(t *testing.T) {
		code, env := g.json(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "alice"})
		assert.Equal(t, http.StatusBadRequest, code)
		assert.JSONEq(t, `{"Password":"field is required"}`, string(env.Error))
	})

	t.Run("malformed body", func(t *testing.T) {
		code, env := g.do(t, http.MethodPost, "/api/v1/auth/login", "", strings.NewReader("{"), "application/json")
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, `"invalid request body"`, string(env.Error))
	})

	t.Run("wrong password", func(t *testing.T) {
		code, env := g.json(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "alice", "password": "nope"})
		assert.Equal(t, http.StatusUnauthorized, code)
		assert.Equal(t, `"Invalid username or password"`, string(env.Error))
		assert.Equal(t, 0, g.sessions.Len())
	})

	t.Run("success", func(t *testing.T) {
		token := g.login(t)
		assert.Equal(t, 1, g.sessions.Len())

		code, env := g.json(t, http.MethodGet, "/api/v1/auth/me", token, nil)
		assert.Equal(t, http.StatusOK, code)
		assert.JSONEq(t, `{"username":"alice"}`, string(env.Data))
	})
}

func TestRouter_RequiresToken(t *testing.T) {
	g := newGateway(t, newFakeQA(t).URL)

	code, _ := g.json(t, http.MethodGet, "/api/v1/transcript", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = g.json(t, http.MethodGet, "/api/v1/transcript", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	other, err := security.NewJWTManager("another-secret", time.Hour).GenerateAccessToken("sid", "mallory", "")
	require.NoError(t, err)
	code, _ = g.json(t, http.MethodGet, "/api/v1/transcript", other, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestRouter_Conversation(t *testing.T) {
	g := newGateway(t, newFakeQA(t).URL)
	token := g.login(t)

	// welcome entry first
	code, env := g.json(t, http.MethodGet, "/api/v1/transcript", token, nil)
	require.Equal(t, http.StatusOK, code)
	tr := decode[struct {
		Entries []domain.ConversationEntry `json:"entries"`
	}](t, env.Data)
	require.NotEmpty(t, tr.Entries)
	assert.Equal(t, domain.WelcomeEntryID, tr.Entries[0].ID)

	// catalog loaded on login, nothing bound
	code, env = g.json(t, http.MethodGet, "/api/v1/documents", token, nil)
	require.Equal(t, http.StatusOK, code)
	snap := decode[domain.BindingSnapshot](t, env.Data)
	assert.Nil(t, snap.Current)
	require.Len(t, snap.Catalog, 1)
	assert.Equal(t, "report.pdf", snap.Catalog[0].Filename)

	// asking with no document is rejected with a notice
	code, env = g.json(t, http.MethodPost, "/api/v1/questions", token, map[string]string{"text": "hi"})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "rejected", decode[turnView](t, env.Data).State)

	// blank question
	code, env = g.json(t, http.MethodPost, "/api/v1/questions", token, map[string]string{"text": "   "})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, `"Question must not be empty."`, string(env.Error))

	code, env = g.json(t, http.MethodPut, "/api/v1/documents/current", token, map[string]string{"document_id": "99"})
	assert.Equal(t, http.StatusNotFound, code)

	code, env = g.json(t, http.MethodPut, "/api/v1/documents/current", token, map[string]string{"document_id": "7"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "report.pdf", decode[domain.DocumentRef](t, env.Data).Filename)

	code, env = g.json(t, http.MethodPost, "/api/v1/questions", token, map[string]string{"text": "What is the answer?"})
	require.Equal(t, http.StatusOK, code, string(env.Error))
	view := decode[turnView](t, env.Data)
	assert.Equal(t, "question", view.Kind)
	assert.Equal(t, "settled", view.State)
	require.NotNil(t, view.Answer)
	assert.Equal(t, "42", view.Answer.Text)

	// merge replaces the local pair with the server pair
	code, env = g.json(t, http.MethodPost, "/api/v1/reconcile", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"result":"merged"}`, string(env.Data))

	code, env = g.json(t, http.MethodGet, "/api/v1/transcript", token, nil)
	require.Equal(t, http.StatusOK, code)
	tr = decode[struct {
		Entries []domain.ConversationEntry `json:"entries"`
	}](t, env.Data)
	var serverPair int
	for _, e := range tr.Entries {
		if strings.HasPrefix(e.ID, domain.ServerIDPrefix) {
			serverPair++
		}
	}
	assert.Equal(t, 2, serverPair)
}

func TestRouter_Documents(t *testing.T) {
	fake := newFakeQA(t)
	g := newGateway(t, fake.URL)
	token := g.login(t)

	t.Run("upload binds the new document", func(t *testing.T) {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		part, err := mw.CreateFormFile("file", "notes.txt")
		require.NoError(t, err)
		part.Write([]byte("hello"))
		require.NoError(t, mw.Close())

		code, env := g.do(t, http.MethodPost, "/api/v1/uploads", token, &body, mw.FormDataContentType())
		require.Equal(t, http.StatusCreated, code, string(env.Error))
		view := decode[turnView](t, env.Data)
		assert.Equal(t, "settled", view.State)
		require.NotNil(t, view.Document)
		assert.Equal(t, "notes.txt", view.Document.Filename)

		_, env = g.json(t, http.MethodGet, "/api/v1/documents", token, nil)
		snap := decode[domain.BindingSnapshot](t, env.Data)
		require.NotNil(t, snap.Current)
		assert.Equal(t, "notes.txt", snap.Current.Filename)
	})

	t.Run("upload without file", func(t *testing.T) {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		mw.WriteField("note", "no file here")
		require.NoError(t, mw.Close())

		code, _ := g.do(t, http.MethodPost, "/api/v1/uploads", token, &body, mw.FormDataContentType())
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("delete without confirmation is declined", func(t *testing.T) {
		code, env := g.json(t, http.MethodDelete, "/api/v1/documents/7", token, nil)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "declined", decode[turnView](t, env.Data).State)
	})

	t.Run("confirmed delete", func(t *testing.T) {
		code, env := g.json(t, http.MethodDelete, "/api/v1/documents/7?confirm=true", token, nil)
		require.Equal(t, http.StatusOK, code, string(env.Error))
		assert.Equal(t, "settled", decode[turnView](t, env.Data).State)

		_, env = g.json(t, http.MethodPost, "/api/v1/documents/refresh", token, nil)
		snap := decode[domain.BindingSnapshot](t, env.Data)
		for _, d := range snap.Catalog {
			assert.NotEqual(t, "7", d.ID)
		}
	})

	t.Run("deleting a missing document fails", func(t *testing.T) {
		code, env := g.json(t, http.MethodDelete, "/api/v1/documents/7?confirm=true", token, nil)
		assert.Equal(t, http.StatusNotFound, code)
		view := decode[turnView](t, env.Error)
		assert.Equal(t, "failed", view.State)
		assert.Equal(t, "Document not found.", view.Error)
	})
}

func TestRouter_LogoutRevokesToken(t *testing.T) {
	g := newGateway(t, newFakeQA(t).URL)
	token := g.login(t)

	code, _ := g.json(t, http.MethodPost, "/api/v1/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 0, g.sessions.Len())

	code, env := g.json(t, http.MethodGet, "/api/v1/transcript", token, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, `"session has been logged out"`, string(env.Error))
}

func TestRouter_ResumesLostSession(t *testing.T) {
	fake := newFakeQA(t)
	first := newGateway(t, fake.URL)
	token := first.login(t)

	// a second gateway with the same secret but no sessions, as after a restart
	second := newGateway(t, fake.URL)
	code, env := second.json(t, http.MethodGet, "/api/v1/documents", token, nil)
	require.Equal(t, http.StatusOK, code, string(env.Error))
	assert.Len(t, decode[domain.BindingSnapshot](t, env.Data).Catalog, 1)
	assert.Equal(t, 1, second.sessions.Len())

	// the resumed session is reused afterwards
	code, _ = second.json(t, http.MethodGet, "/api/v1/transcript", token, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, second.sessions.Len())
}
