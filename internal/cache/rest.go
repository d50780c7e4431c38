package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prospero-intel/prospero/models"
)

// REST is the HTTP cache transport, speaking the Upstash-style
// /get/<key>, /set/<key>?EX=<seconds> and /del/<key> command surface.
type REST struct {
	endpoint string
	token    string
	http     *http.Client
}

// NewREST creates an HTTP cache client against the given endpoint.
func NewREST(endpoint, token string) *REST {
	return &REST{
		endpoint: strings.TrimRight(endpoint, "/"),
		token:    token,
		http:     &http.Client{Timeout: 8 * time.Second},
	}
}

func (r *REST) Name() string { return "rest" }

type restResponse struct {
	Result *string `json:"result"`
	Error  string  `json:"error,omitempty"`
}

// Ping verifies the endpoint answers the PING command.
func (r *REST) Ping(ctx context.Context) error {
	resp, err := r.do(ctx, http.MethodGet, "/ping", nil)
	if err != nil {
		return err
	}
	if resp.Result == nil || !strings.EqualFold(*resp.Result, "pong") {
		return &models.CacheError{Backend: "rest", Op: "ping", Err: fmt.Errorf("unexpected ping reply")}
	}
	return nil
}

func (r *REST) Get(ctx context.Context, key string) (string, bool, error) {
	resp, err := r.do(ctx, http.MethodGet, "/get/"+url.PathEscape(key), nil)
	if err != nil {
		return "", false, err
	}
	if resp.Result == nil {
		return "", false, nil
	}
	return *resp.Result, true, nil
}

func (r *REST) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	path := "/set/" + url.PathEscape(key)
	if ttl > 0 {
		path += fmt.Sprintf("?EX=%d", int(ttl.Seconds()))
	}
	_, err := r.do(ctx, http.MethodPost, path, strings.NewReader(value))
	return err
}

func (r *REST) Del(ctx context.Context, key string) error {
	_, err := r.do(ctx, http.MethodPost, "/del/"+url.PathEscape(key), nil)
	return err
}

func (r *REST) do(ctx context.Context, method, path string, body io.Reader) (*restResponse, error) {
	req, err := http.NewRequestWithContext(ctx, method, r.endpoint+path, body)
	if err != nil {
		return nil, &models.CacheError{Backend: "rest", Op: path, Err: err}
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return nil, &models.CacheError{Backend: "rest", Op: path, Err: err}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &models.CacheError{Backend: "rest", Op: path, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &models.CacheError{Backend: "rest", Op: path, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	var parsed restResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &models.CacheError{Backend: "rest", Op: path, Err: err}
	}
	if parsed.Error != "" {
		return nil, &models.CacheError{Backend: "rest", Op: path, Err: fmt.Errorf("%s", parsed.Error)}
	}
	return &parsed, nil
}
