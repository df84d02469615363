package qaclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Rrens/docqa/internal/domain"
)

const maxErrorBody = 64 << 10

var (
	_ domain.QAService     = (*Client)(nil)
	_ domain.Authenticator = (*Client)(nil)
)

// Config configures the QA service client
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client talks to the document QA service over HTTP. A Client without a
// token can only log in or register; use WithToken for everything else.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// New creates a new QA service client
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	base := strings.TrimRight(cfg.BaseURL, "/") + "/"
	return &Client{
		baseURL: base,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

// WithToken returns a copy of the client that authenticates as the token owner
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// Login exchanges credentials for a service token
func (c *Client) Login(ctx context.Context, creds domain.Credentials) (*domain.AuthResult, error) {
	return c.authenticate(ctx, "login/", creds)
}

// Register creates an account and returns its service token
func (c *Client) Register(ctx context.Context, creds domain.Credentials) (*domain.AuthResult, error) {
	return c.authenticate(ctx, "register/", creds)
}

func (c *Client) authenticate(ctx context.Context, endpoint string, creds domain.Credentials) (*domain.AuthResult, error) {
	var resp tokenResponse
	body := credentialsRequest{Username: creds.Username, Password: creds.Password}
	if err := c.doJSON(ctx, http.MethodPost, endpoint, body, &resp); err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, domain.NewError(domain.KindServer, "missing token in response", nil)
	}
	return &domain.AuthResult{
		Token: resp.Token,
		User:  domain.User{Username: creds.Username, Token: resp.Token},
	}, nil
}

// Logout is a no-op: the service has no logout endpoint and tokens are
// simply forgotten by the caller.
func (c *Client) Logout(ctx context.Context, token string) error {
	return nil
}

type askRequest struct {
	Question   string `json:"question"`
	DocumentID flexID `json:"document_id,omitempty"`
}

type askResponse struct {
	Answer    string `json:"answer"`
	HistoryID flexID `json:"history_id"`
}

// Ask sends a question about a document
func (c *Client) Ask(ctx context.Context, question, documentID string) (*domain.Answer, error) {
	var resp askResponse
	req := askRequest{Question: question, DocumentID: flexID(documentID)}
	if err := c.doJSON(ctx, http.MethodPost, "qa/", req, &resp); err != nil {
		return nil, err
	}
	return &domain.Answer{Text: resp.Answer, HistoryID: string(resp.HistoryID)}, nil
}

type historyItem struct {
	ID        flexID       `json:"id"`
	Document  *documentDTO `json:"document"`
	Question  string       `json:"question"`
	Answer    string       `json:"answer"`
	CreatedAt time.Time    `json:"created_at"`
}

// History returns the caller's persisted pairs, newest first
func (c *Client) History(ctx context.Context) ([]domain.HistoryItem, error) {
	var items []historyItem
	if err := c.doJSON(ctx, http.MethodGet, "history/", nil, &items); err != nil {
		return nil, err
	}

	out := make([]domain.HistoryItem, 0, len(items))
	for _, it := range items {
		h := domain.HistoryItem{
			ID:        string(it.ID),
			Question:  it.Question,
			Answer:    it.Answer,
			CreatedAt: it.CreatedAt,
		}
		if it.Document != nil {
			h.DocumentID = string(it.Document.ID)
		}
		out = append(out, h)
	}
	return out, nil
}

// Documents lists the caller's uploaded documents
func (c *Client) Documents(ctx context.Context) ([]domain.DocumentRef, error) {
	var docs []documentDTO
	if err := c.doJSON(ctx, http.MethodGet, "documents/", nil, &docs); err != nil {
		return nil, err
	}

	out := make([]domain.DocumentRef, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.ref())
	}
	return out, nil
}

// Upload sends a file as multipart form data in the "file" field
func (c *Client) Upload(ctx context.Context, upload domain.Upload) (*domain.DocumentRef, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", upload.Filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, upload.Content); err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish form: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "upload/", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var doc documentDTO
	if err := c.do(req, &doc); err != nil {
		return nil, err
	}
	ref := doc.ref()
	if ref.Filename == "" {
		ref.Filename = upload.Filename
	}
	return &ref, nil
}

// DeleteDocument removes a document and the history attached to it
func (c *Client) DeleteDocument(ctx context.Context, documentID string) error {
	return c.doJSON(ctx, http.MethodDelete, "documents/"+url.PathEscape(documentID)+"/", nil, nil)
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := c.newRequest(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Token "+c.token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return domain.NewError(domain.KindNetwork, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return classify(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return domain.NewError(domain.KindServer, "failed to decode response", err)
	}
	return nil
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

// classify maps a non-2xx response to a domain error by status code
func classify(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := serverMessage(raw)

	e := &domain.Error{Status: resp.StatusCode, Message: msg}
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		e.Kind = domain.KindAuth
		e.Message = ""
	case resp.StatusCode == http.StatusForbidden:
		e.Kind = domain.KindAuth
	case resp.StatusCode == http.StatusNotFound:
		e.Kind = domain.KindNotFound
	case resp.StatusCode >= 500:
		e.Kind = domain.KindServer
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		e.Kind = domain.KindValidation
	default:
		e.Kind = domain.KindServer
	}
	return e
}

// serverMessage extracts the human message from an error body. Field
// validation errors ({"question": ["This field is required."]}) yield the
// first message found.
func serverMessage(raw []byte) string {
	var body errorBody
	if json.Unmarshal(raw, &body) == nil {
		for _, m := range []string{body.Error, body.Message, body.Detail} {
			if m != "" {
				return m
			}
		}
	}

	var fields map[string]json.RawMessage
	if json.Unmarshal(raw, &fields) != nil {
		return ""
	}
	for _, v := range fields {
		var list []string
		if json.Unmarshal(v, &list) == nil && len(list) > 0 {
			return list[0]
		}
	}
	return ""
}
