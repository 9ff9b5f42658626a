// Package api implements the fallback transport: a request/response client
// for the interview backend's REST endpoints. Each call is a single atomic
// request; at-most-once is NOT guaranteed under timeout, so callers never
// re-send automatically.
package api

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
	"os"
	"path/filepath"
	"time"

	"github.com/asengupta/intervo/internal/interview"
	"github.com/asengupta/intervo/internal/wire"
)

const defaultTimeout = 60 * time.Second

// Client talks to the interview backend over HTTP. Stateless; safe to share
// across calls within a session.
type Client struct {
	baseURL string
	client  *http.Client
}

var _ interview.Fallback = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// NewClient creates a client for the backend at baseURL (http or https).
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session is the backend's record created by a resume upload.
type Session struct {
	ID     string `json:"session_id"`
	Role   string `json:"role"`
	Status string `json:"status"`
}

// Scorecard is the final result set for a session.
type Scorecard struct {
	SessionID      string            `json:"session_id"`
	Role           string            `json:"role"`
	OverallScore   float64           `json:"overall_score"`
	TotalQuestions int               `json:"total_questions"`
	Evaluations    []wire.Evaluation `json:"evaluations"`
}

// stepResponse mirrors the backend's question/evaluation reply shape.
type stepResponse struct {
	Question   string           `json:"question"`
	Evaluation *wire.Evaluation `json:"evaluation"`
}

// errorResponse mirrors the backend's error body.
type errorResponse struct {
	Detail string `json:"detail"`
}

// UploadResume uploads a PDF resume and returns the newly created session.
func (c *Client) UploadResume(ctx context.Context, path string) (*Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open resume: %w", err)
	}
	defer func() { _ = f.Close() }()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("build upload form: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("read resume: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("finalize upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("upload-resume")+"/", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var session Session
	if err := c.do(req, "upload-resume", "", &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// StartInterview begins the interview and returns the first question.
func (c *Client) StartInterview(ctx context.Context, sessionID string) (*interview.StepReply, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("start-interview", sessionID), nil)
	if err != nil {
		return nil, err
	}

	var resp stepResponse
	if err := c.do(req, "start-interview", sessionID, &resp); err != nil {
		return nil, err
	}
	return &interview.StepReply{Question: resp.Question, Evaluation: resp.Evaluation}, nil
}

// SubmitAnswer submits answer text and returns the next question plus the
// evaluation of this answer (absent when no prior question existed).
func (c *Client) SubmitAnswer(ctx context.Context, sessionID, answer string) (*interview.StepReply, error) {
	payload, err := json.Marshal(map[string]string{
		"session_id": sessionID,
		"answer":     answer,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("submit-answer")+"/", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var resp stepResponse
	if err := c.do(req, "submit-answer", sessionID, &resp); err != nil {
		return nil, err
	}
	return &interview.StepReply{Question: resp.Question, Evaluation: resp.Evaluation}, nil
}

// EndInterview marks the backend-side session ended.
func (c *Client) EndInterview(ctx context.Context, sessionID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("end-interview", sessionID), nil)
	if err != nil {
		return err
	}
	return c.do(req, "end-interview", sessionID, nil)
}

// Scorecard fetches the session's results.
func (c *Client) Scorecard(ctx context.Context, sessionID string) (*Scorecard, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("scorecard", sessionID), nil)
	if err != nil {
		return nil, err
	}

	var card Scorecard
	if err := c.do(req, "scorecard", sessionID, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// DeleteSession deletes the session and its server-side files. Irreversible.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.endpoint("session", sessionID), nil)
	if err != nil {
		return err
	}
	return c.do(req, "delete-session", sessionID, nil)
}

// do executes a request and decodes the response into out (skipped when out
// is nil). Every failure is translated into the session error taxonomy: no
// raw network or HTTP error crosses this boundary.
func (c *Client) do(req *http.Request, op, sessionID string, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return &interview.TransportError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return &interview.SessionError{SessionID: sessionID, Err: errors.New(errorDetail(resp.Body))}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &interview.TransportError{
			Op:  op,
			Err: fmt.Errorf("HTTP %d: %s", resp.StatusCode, errorDetail(resp.Body)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &interview.TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// errorDetail extracts the backend's error message from a failure body.
func errorDetail(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(data) == 0 {
		return "no error detail"
	}
	var body errorResponse
	if err := json.Unmarshal(data, &body); err == nil && body.Detail != "" {
		return body.Detail
	}
	return string(data)
}

func (c *Client) endpoint(parts ...string) string {
	u, err := url.JoinPath(c.baseURL, parts...)
	if err != nil {
		// Fall through to a plain join; the request will fail loudly.
		return c.baseURL + "/" + parts[len(parts)-1]
	}
	return u
}
