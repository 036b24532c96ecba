// Package google holds the thin service adapters for the Google
// Calendar and Sheets REST APIs. The adapters normalize upstream
// failures into the dispatch error taxonomy and support a dry-run mode
// that substitutes deterministic stubs for network calls.
package google

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"agent-bridge/internal/dispatch"
)

const (
	defaultTimeout = 5 * time.Second

	// One retry with a short fixed backoff, for rate-limit and
	// server-error responses only.
	maxAttempts  = 2
	retryBackoff = 500 * time.Millisecond
)

// TokenSource yields a bearer token for outbound API calls. Consent and
// refresh flows live outside this service; the file source just reads
// whatever token the setup tooling persisted.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticTokenSource returns a fixed token. Used in tests and when the
// token is injected through the environment.
type StaticTokenSource struct {
	AccessToken string
}

func (s StaticTokenSource) Token(context.Context) (string, error) {
	return s.AccessToken, nil
}

// FileTokenSource reads the access token from a persisted OAuth token
// file on every call, so an externally refreshed file is picked up
// without a restart.
type FileTokenSource struct {
	Path string
}

func NewFileTokenSource(path string) *FileTokenSource {
	return &FileTokenSource{Path: path}
}

func (s *FileTokenSource) Token(context.Context) (string, error) {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	var tok struct {
		AccessToken string `json:"access_token"`
		Token       string `json:"token"`
	}
	if err := json.Unmarshal(raw, &tok); err != nil {
		return "", fmt.Errorf("parse token file: %w", err)
	}
	if tok.AccessToken != "" {
		return tok.AccessToken, nil
	}
	if tok.Token != "" {
		return tok.Token, nil
	}
	return "", fmt.Errorf("token file %s has no access token", s.Path)
}

// postJSON issues an authorized POST and normalizes failures. Transient
// responses get the single bounded retry; client errors return
// immediately since retrying cannot change the outcome.
func postJSON(ctx context.Context, client *http.Client, tokens TokenSource, action, url string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, dispatch.NewUnknownError(action, err.Error())
	}

	var lastErr *dispatch.UpstreamError
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retryBackoff):
			case <-ctx.Done():
				return nil, dispatch.NewTransientError(action, ctx.Err().Error())
			}
		}

		token, err := tokens.Token(ctx)
		if err != nil {
			return nil, dispatch.NewAuthError(action, err.Error())
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, dispatch.NewUnknownError(action, err.Error())
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, dispatch.NewTransientError(action, err.Error())
			}
			lastErr = dispatch.NewTransientError(action, err.Error())
			continue
		}

		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = dispatch.NewTransientError(action, readErr.Error())
			continue
		}

		if resp.StatusCode == http.StatusOK {
			return data, nil
		}

		ue := dispatch.FromStatus(action, resp.StatusCode, string(data))
		if !ue.Retryable {
			return nil, ue
		}
		lastErr = ue
	}
	return nil, lastErr
}
