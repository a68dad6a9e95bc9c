// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backend

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	tempDir, err := os.MkdirTemp("", "server_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	handler, _, hub := NewServerHandler(Options{
		DataDir:     tempDir,
		UseMockAuth: true,
	})
	t.Cleanup(hub.Stop)
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url string, body any, cookies ...*http.Cookie) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	return resp, buf.Bytes()
}

func TestServerSessionFlow(t *testing.T) {
	ts := newTestServer(t)

	// No active match yet.
	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/api/session", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("GET /api/session = %d, want 404", resp.StatusCode)
	}

	// Start a match.
	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/session/new", map[string]string{
		"homeTeam": "Home FC",
		"awayTeam": "Away FC",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /api/session/new = %d: %s", resp.StatusCode, body)
	}
	var m Match
	if err := json.Unmarshal(body, &m); err != nil {
		t.Fatalf("unmarshal match: %v", err)
	}
	if m.HomeTeam.Name != "Home FC" {
		t.Errorf("home team = %q", m.HomeTeam.Name)
	}

	// Log events.
	resp, body = doJSON(t, http.MethodPost, ts.URL+"/api/session/event", map[string]any{
		"type": "shot", "x": 50.0, "y": 50.0, "outcome": "goal",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /api/session/event = %d: %s", resp.StatusCode, body)
	}
	var evt MatchEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if evt.Zone != "10" || evt.Minute != 1 {
		t.Errorf("event zone/minute = %s/%d", evt.Zone, evt.Minute)
	}

	doJSON(t, http.MethodPost, ts.URL+"/api/session/event", map[string]any{
		"type": "recovery", "x": 10.0, "y": 10.0,
	})

	// Stats reflect both events.
	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/stats", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /api/stats = %d", resp.StatusCode)
	}
	var stats MatchStats
	if err := json.Unmarshal(body, &stats); err != nil {
		t.Fatalf("unmarshal stats: %v", err)
	}
	if stats.TotalShots != 1 || stats.TotalGoals != 1 || stats.TotalRecoveries != 1 {
		t.Errorf("stats wrong: %+v", stats)
	}

	// Invalid event payloads are rejected.
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/session/event", map[string]any{
		"type": "shot", "x": 1.0, "y": 1.0,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("shot without outcome = %d, want 400", resp.StatusCode)
	}

	// Undo drops the recovery.
	resp, body = doJSON(t, http.MethodPost, ts.URL+"/api/session/undo", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /api/session/undo = %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, &m); err != nil {
		t.Fatalf("unmarshal match: %v", err)
	}
	if len(m.Events) != 1 {
		t.Errorf("events after undo = %d, want 1", len(m.Events))
	}

	// Rename a team mid-match.
	resp, body = doJSON(t, http.MethodPost, ts.URL+"/api/session/teams", map[string]string{
		"homeTeam": "Renamed FC",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /api/session/teams = %d: %s", resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, &m); err != nil {
		t.Fatalf("unmarshal match: %v", err)
	}
	if m.HomeTeam.Name != "Renamed FC" || m.AwayTeam.Name != "Away FC" {
		t.Errorf("teams after rename = %q/%q", m.HomeTeam.Name, m.AwayTeam.Name)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/session/teams", map[string]string{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("rename with no names = %d, want 400", resp.StatusCode)
	}

	// Edit the remaining event.
	resp, body = doJSON(t, http.MethodPost, ts.URL+"/api/session/event/update", map[string]any{
		"id": m.Events[0].ID, "minute": 42, "half": 2,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /api/session/event/update = %d: %s", resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, &evt); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if evt.Minute != 42 || evt.Half != 2 {
		t.Errorf("update not applied: %+v", evt)
	}

	// Remove it.
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/session/event/remove", map[string]string{
		"id": evt.ID,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /api/session/event/remove = %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/session/event/remove", map[string]string{
		"id": evt.ID,
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("removing removed event = %d, want 404", resp.StatusCode)
	}
}

func TestServerImportExport(t *testing.T) {
	ts := newTestServer(t)

	payload := validMatchJSON(validEvent)
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/import", strings.NewReader(payload))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("import request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /api/import = %d", resp.StatusCode)
	}

	// Export returns a document that re-imports.
	resp2, body := doJSON(t, http.MethodGet, ts.URL+"/api/export", nil)
	if resp2.StatusCode != http.StatusOK {
		t.Fatalf("GET /api/export = %d", resp2.StatusCode)
	}
	if _, err := ImportMatch(body); err != nil {
		t.Errorf("exported document did not validate: %v", err)
	}

	// Malformed import reports the validation reason.
	req, _ = http.NewRequest(http.MethodPost, ts.URL+"/api/import", strings.NewReader(`{"id": "x"}`))
	resp3, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("import request failed: %v", err)
	}
	var buf bytes.Buffer
	buf.ReadFrom(resp3.Body)
	resp3.Body.Close()
	if resp3.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad import = %d, want 400", resp3.StatusCode)
	}
	if !strings.Contains(buf.String(), "missing or invalid date") {
		t.Errorf("error body %q does not name the failing check", buf.String())
	}
}

func TestServerListAndDelete(t *testing.T) {
	ts := newTestServer(t)

	doJSON(t, http.MethodPost, ts.URL+"/api/session/new", map[string]string{
		"homeTeam": "H1", "awayTeam": "A1",
	})
	_, body := doJSON(t, http.MethodPost, ts.URL+"/api/session/new", map[string]string{
		"homeTeam": "H2", "awayTeam": "A2",
	})
	var second Match
	if err := json.Unmarshal(body, &second); err != nil {
		t.Fatalf("unmarshal match: %v", err)
	}

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/list-matches", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /api/list-matches = %d", resp.StatusCode)
	}
	var summaries []MatchSummary
	if err := json.Unmarshal(body, &summaries); err != nil {
		t.Fatalf("unmarshal summaries: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("got %d matches, want 2", len(summaries))
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/delete-match", map[string]string{
		"id": second.ID,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /api/delete-match = %d", resp.StatusCode)
	}

	_, body = doJSON(t, http.MethodGet, ts.URL+"/api/list-matches", nil)
	if err := json.Unmarshal(body, &summaries); err != nil {
		t.Fatalf("unmarshal summaries: %v", err)
	}
	if len(summaries) != 1 {
		t.Errorf("got %d matches after delete, want 1", len(summaries))
	}

	// Deleting the active match clears the session.
	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/session", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET /api/session after delete = %d, want 404", resp.StatusCode)
	}
}

func TestServerSessionLoad(t *testing.T) {
	ts := newTestServer(t)

	_, body := doJSON(t, http.MethodPost, ts.URL+"/api/session/new", map[string]string{
		"homeTeam": "H1", "awayTeam": "A1",
	})
	var first Match
	json.Unmarshal(body, &first)
	doJSON(t, http.MethodPost, ts.URL+"/api/session/event", map[string]any{
		"type": "shot", "x": 50.0, "y": 50.0, "outcome": "goal",
	})

	doJSON(t, http.MethodPost, ts.URL+"/api/session/new", map[string]string{
		"homeTeam": "H2", "awayTeam": "A2",
	})

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/session/load", map[string]string{
		"id": first.ID,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /api/session/load = %d: %s", resp.StatusCode, body)
	}
	var loaded Match
	if err := json.Unmarshal(body, &loaded); err != nil {
		t.Fatalf("unmarshal match: %v", err)
	}
	if loaded.ID != first.ID || len(loaded.Events) != 1 {
		t.Errorf("loaded wrong match: %+v", loaded)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/session/load", map[string]string{
		"id": "eeeeeeee-eeee-4eee-eeee-eeeeeeeeeeee",
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("loading missing match = %d, want 404", resp.StatusCode)
	}
}

func TestServerOpaqueMatchIDs(t *testing.T) {
	ts := newTestServer(t)

	// Imported documents can carry IDs that are not UUIDs. They must remain
	// loadable and deletable afterwards.
	payload := `{"id": "m1", "date": "2026-03-14", "homeTeam": {"id": "h", "name": "H"}, "awayTeam": {"id": "a", "name": "A"}, "events": []}`
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/import", strings.NewReader(payload))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("import request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /api/import = %d", resp.StatusCode)
	}

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/session/load", map[string]string{
		"id": "m1",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /api/session/load = %d: %s", resp.StatusCode, body)
	}
	var m Match
	if err := json.Unmarshal(body, &m); err != nil {
		t.Fatalf("unmarshal match: %v", err)
	}
	if m.ID != "m1" {
		t.Errorf("loaded ID = %q, want m1", m.ID)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/delete-match", map[string]string{
		"id": "m1",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /api/delete-match = %d", resp.StatusCode)
	}
	_, body = doJSON(t, http.MethodGet, ts.URL+"/api/list-matches", nil)
	var summaries []MatchSummary
	if err := json.Unmarshal(body, &summaries); err != nil {
		t.Fatalf("unmarshal summaries: %v", err)
	}
	if len(summaries) != 0 {
		t.Errorf("got %d matches after delete, want 0", len(summaries))
	}
}

func TestServerCSVExport(t *testing.T) {
	ts := newTestServer(t)

	doJSON(t, http.MethodPost, ts.URL+"/api/session/new", map[string]string{
		"homeTeam": "H", "awayTeam": "A",
	})
	doJSON(t, http.MethodPost, ts.URL+"/api/session/event", map[string]any{
		"type": "shot", "x": 50.0, "y": 50.0, "outcome": "goal",
	})

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/stats.csv", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /api/stats.csv = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.HasPrefix(string(body), "Zone,Shots,Goals,") {
		t.Errorf("unexpected CSV header: %q", strings.SplitN(string(body), "\n", 2)[0])
	}
	if !strings.Contains(string(body), "Zone 10,1,1,0,0,0,0") {
		t.Errorf("zone 10 row missing from:\n%s", body)
	}
}

func TestServerAuth(t *testing.T) {
	ts := newTestServer(t)

	// Anonymous /api/me is rejected.
	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/api/me", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("anonymous /api/me = %d, want 403", resp.StatusCode)
	}

	cookie := &http.Cookie{Name: "mock_auth_user", Value: "test@example.com"}
	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/me", nil, cookie)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /api/me = %d", resp.StatusCode)
	}
	var me struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &me); err != nil {
		t.Fatalf("unmarshal /api/me: %v", err)
	}
	if me.ID != "test@example.com" {
		t.Errorf("id = %q", me.ID)
	}

	// A match owned by one user is not writable by another.
	doJSON(t, http.MethodPost, ts.URL+"/api/session/new", map[string]string{
		"homeTeam": "H", "awayTeam": "A",
	}, cookie)

	other := &http.Cookie{Name: "mock_auth_user", Value: "other@example.com"}
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/session/event", map[string]any{
		"type": "shot", "x": 1.0, "y": 1.0, "outcome": "goal",
	}, other)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("foreign write = %d, want 403", resp.StatusCode)
	}

	// The owner still can.
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/session/event", map[string]any{
		"type": "shot", "x": 1.0, "y": 1.0, "outcome": "goal",
	}, cookie)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("owner write = %d, want 200", resp.StatusCode)
	}
}

func TestServerMethodChecks(t *testing.T) {
	ts := newTestServer(t)

	for _, tt := range []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/session/new"},
		{http.MethodPost, "/api/session"},
		{http.MethodGet, "/api/session/undo"},
		{http.MethodGet, "/api/import"},
		{http.MethodPost, "/api/export"},
		{http.MethodPost, "/api/stats"},
		{http.MethodPost, "/api/list-matches"},
		{http.MethodGet, "/api/delete-match"},
	} {
		resp, _ := doJSON(t, tt.method, ts.URL+tt.path, nil)
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("%s %s = %d, want 405", tt.method, tt.path, resp.StatusCode)
		}
	}
}

func TestServerETag(t *testing.T) {
	ts := newTestServer(t)

	doJSON(t, http.MethodPost, ts.URL+"/api/session/new", map[string]string{
		"homeTeam": "H", "awayTeam": "A",
	})

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/api/session", nil)
	etag := resp.Header.Get("ETag")
	if etag == "" {
		t.Fatal("no ETag on /api/session response")
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/session", nil)
	req.Header.Set("If-None-Match", etag)
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotModified {
		t.Errorf("conditional GET = %d, want 304", resp2.StatusCode)
	}
}

func TestServerMetrics(t *testing.T) {
	ts := newTestServer(t)

	doJSON(t, http.MethodPost, ts.URL+"/api/session/new", map[string]string{
		"homeTeam": "H", "awayTeam": "A",
	})

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/metrics", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /api/metrics = %d", resp.StatusCode)
	}
	var metrics map[string]json.RawMessage
	if err := json.Unmarshal(body, &metrics); err != nil {
		t.Fatalf("unmarshal metrics: %v", err)
	}
	for _, key := range []string{"latency", "requests", "events", "activeWS", "uptimeSec"} {
		if _, ok := metrics[key]; !ok {
			t.Errorf("metrics missing %q", key)
		}
	}
}
