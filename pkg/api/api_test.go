package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bissakov/qazcode-rpa-sub000/pkg/store"
	"github.com/bissakov/qazcode-rpa-sub000/pkg/validation"
)

const demoProject = `{
  "name": "demo",
  "main": {
    "id": "main",
    "name": "main",
    "nodes": [
      {"id": "n1", "activity": {"type": "start"}},
      {"id": "n2", "activity": {"type": "log", "message": "hi"}},
      {"id": "n3", "activity": {"type": "end"}}
    ],
    "connections": [
      {"id": "c1", "from": "n1", "to": "n2", "branch": "default"},
      {"id": "c2", "from": "n2", "to": "n3", "branch": "default"}
    ]
  }
}`

func newTestServer() *Server {
	return NewServer(store.NewStore(), nil)
}

func doJSON(t *testing.T, s *Server, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)

	var payload map[string]any
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(data) > 0 {
		require.NoError(t, json.Unmarshal(data, &payload), "body: %s", data)
	}
	return resp, payload
}

func createProject(t *testing.T, s *Server) string {
	t.Helper()
	resp, payload := doJSON(t, s, http.MethodPost, "/v1/projects", demoProject)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id, _ := payload["id"].(string)
	require.NotEmpty(t, id)
	return id
}

func TestHealthz(t *testing.T) {
	s := newTestServer()
	resp, payload := doJSON(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", payload["status"])
}

func TestProjectLifecycle(t *testing.T) {
	s := newTestServer()
	id := createProject(t, s)

	resp, payload := doJSON(t, s, http.MethodGet, "/v1/projects/"+id, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "demo", payload["name"])

	resp, payload = doJSON(t, s, http.MethodGet, "/v1/projects", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, payload["projects"], 1)

	resp, _ = doJSON(t, s, http.MethodDelete, "/v1/projects/"+id, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, payload = doJSON(t, s, http.MethodGet, "/v1/projects/"+id, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	errObj := payload["error"].(map[string]any)
	assert.Equal(t, "project not found", errObj["message"])
}

func TestCreateProjectRejectsInvalidDocument(t *testing.T) {
	s := newTestServer()
	resp, payload := doJSON(t, s, http.MethodPost, "/v1/projects", `{"name": "x"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	errObj := payload["error"].(map[string]any)
	assert.Contains(t, errObj["message"], "invalid project document")
}

func TestValidateEndpoint(t *testing.T) {
	s := newTestServer()
	id := createProject(t, s)

	resp, payload := doJSON(t, s, http.MethodPost, "/v1/projects/"+id+"/validate", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, payload["valid"])
}

func TestValidateEndpointReportsRecursion(t *testing.T) {
	selfCalling := `{
	  "name": "loop",
	  "main": {
	    "id": "main",
	    "name": "main",
	    "nodes": [
	      {"id": "n1", "activity": {"type": "start"}},
	      {"id": "n2", "activity": {"type": "call_scenario", "scenario_id": "main"}},
	      {"id": "n3", "activity": {"type": "end"}}
	    ],
	    "connections": [
	      {"id": "c1", "from": "n1", "to": "n2", "branch": "default"},
	      {"id": "c2", "from": "n2", "to": "n3", "branch": "default"}
	    ]
	  }
	}`
	s := newTestServer()
	resp, payload := doJSON(t, s, http.MethodPost, "/v1/projects", selfCalling)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := payload["id"].(string)

	resp, payload = doJSON(t, s, http.MethodPost, "/v1/projects/"+id+"/validate", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, payload["valid"], "recursion is a warning, not an error")

	main := payload["scenarios"].(map[string]any)["main"].(map[string]any)
	warnings := main["warnings"].([]any)
	var codes []string
	for _, w := range warnings {
		codes = append(codes, w.(map[string]any)["code"].(string))
	}
	assert.Contains(t, codes, validation.CodeRecursiveCall)
}

func TestRunLifecycle(t *testing.T) {
	s := newTestServer()
	id := createProject(t, s)

	resp, payload := doJSON(t, s, http.MethodPost, "/v1/projects/"+id+"/runs", "")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	runID := payload["id"].(string)
	require.NotEmpty(t, runID)

	// The run is short; poll briefly for a terminal status.
	deadline := time.Now().Add(2 * time.Second)
	var status string
	for time.Now().Before(deadline) {
		_, payload = doJSON(t, s, http.MethodGet, "/v1/runs/"+runID, "")
		status = payload["status"].(string)
		if status != "running" {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, "succeeded", status)

	resp, payload = doJSON(t, s, http.MethodGet, "/v1/runs/"+runID+"/logs", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	entries := payload["entries"].([]any)
	require.NotEmpty(t, entries)
	last := entries[len(entries)-1].(map[string]any)
	assert.Equal(t, "__EXECUTION_COMPLETE__", last["message"])

	resp, payload = doJSON(t, s, http.MethodGet, "/v1/runs?project_id="+id, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, payload["runs"], 1)
}

func TestStartRunOnMissingProject(t *testing.T) {
	s := newTestServer()
	resp, _ := doJSON(t, s, http.MethodPost, "/v1/projects/ghost/runs", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCancelMissingRun(t *testing.T) {
	s := newTestServer()
	resp, _ := doJSON(t, s, http.MethodPost, "/v1/runs/ghost/cancel", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
