package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asengupta/intervo/internal/interview"
)

func TestStartInterview(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/start-interview/abc", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{"question": "Explain X", "evaluation": nil})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	reply, err := c.StartInterview(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "Explain X", reply.Question)
	assert.Nil(t, reply.Evaluation)
}

func TestSubmitAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/submit-answer/", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "abc", body["session_id"])
		assert.Equal(t, "Y", body["answer"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"question": "Explain Z",
			"evaluation": map[string]any{
				"score":             7,
				"reason":            "partial",
				"llm_actual_answer": "ideal",
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	reply, err := c.SubmitAnswer(context.Background(), "abc", "Y")
	require.NoError(t, err)
	assert.Equal(t, "Explain Z", reply.Question)
	require.NotNil(t, reply.Evaluation)
	assert.Equal(t, 7, reply.Evaluation.Score)
	assert.Equal(t, "partial", reply.Evaluation.Reason)
}

func TestSubmitAnswer_NoEvaluationOnFirstCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"question": "First?"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	reply, err := c.SubmitAnswer(context.Background(), "abc", "hello")
	require.NoError(t, err)
	assert.Nil(t, reply.Evaluation)
}

func TestUnknownSession_MapsToSessionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"detail": "Session not found"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.StartInterview(context.Background(), "nope")

	var sessErr *interview.SessionError
	require.ErrorAs(t, err, &sessErr)
	assert.Equal(t, "nope", sessErr.SessionID)
	assert.Contains(t, err.Error(), "Session not found")
}

func TestServerFailure_MapsToTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	err := c.EndInterview(context.Background(), "abc")

	var trErr *interview.TransportError
	require.ErrorAs(t, err, &trErr)
	assert.Equal(t, "end-interview", trErr.Op)
}

func TestNetworkFailure_MapsToTransportError(t *testing.T) {
	c := NewClient("http://127.0.0.1:1")
	_, err := c.StartInterview(context.Background(), "abc")

	var trErr *interview.TransportError
	assert.ErrorAs(t, err, &trErr)
}

func TestUploadResume(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/upload-resume/", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		f, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "resume.pdf", header.Filename)

		_ = json.NewEncoder(w).Encode(map[string]string{
			"session_id": "sess-1",
			"role":       "Backend Engineer",
			"status":     "initialized",
		})
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "resume.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 fake"), 0o600))

	c := NewClient(srv.URL)
	session, err := c.UploadResume(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", session.ID)
	assert.Equal(t, "Backend Engineer", session.Role)
}

func TestScorecard(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/scorecard/abc", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"session_id":      "abc",
			"role":            "SRE",
			"overall_score":   7.5,
			"total_questions": 2,
			"evaluations": []map[string]any{
				{"question": "Q1", "score": 7, "reason": "partial"},
				{"question": "Q2", "score": 8, "reason": "solid"},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	card, err := c.Scorecard(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "SRE", card.Role)
	assert.InDelta(t, 7.5, card.OverallScore, 0.001)
	require.Len(t, card.Evaluations, 2)
	assert.Equal(t, 8, card.Evaluations[1].Score)
}

func TestDeleteSession(t *testing.T) {
	deleted := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/session/abc", r.URL.Path)
		deleted++
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "Session deleted"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	require.NoError(t, c.DeleteSession(context.Background(), "abc"))
	assert.Equal(t, 1, deleted)
}
