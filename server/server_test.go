package server

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/timpalpant/postflop"
	"github.com/timpalpant/postflop/store"
)

const riverJob = `{
	"oop_range": "AA,KK",
	"ip_range": "QQ,JJ",
	"board": "QsJh2h7c3d",
	"starting_pot": 6,
	"effective_stack": 25,
	"bet": "a",
	"raise": "a"
}`

func newServer(t *testing.T) (*Server, *httptest.Server) {
	st, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "games.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	srv := New(st)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return srv, ts
}

func newTestServer(t *testing.T) *httptest.Server {
	_, ts := newServer(t)
	return ts
}

func do(t *testing.T, ts *httptest.Server, method, path, body string, wantStatus int, out any) {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatal(err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		var e errorResponse
		json.NewDecoder(resp.Body).Decode(&e)
		t.Fatalf("%s %s: status %d, want %d (%s)", method, path, resp.StatusCode, wantStatus, e.Error)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decoding response: %v", method, path, err)
		}
	}
}

func createSession(t *testing.T, ts *httptest.Server) string {
	var info sessionInfo
	do(t, ts, "POST", "/sessions", riverJob, http.StatusCreated, &info)
	if info.ID == "" {
		t.Fatal("no session id returned")
	}
	return info.ID
}

func TestSessionFlow(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts)
	base := "/sessions/" + id

	var pos positionResponse
	do(t, ts, "GET", base+"/actions", "", http.StatusOK, &pos)
	if pos.Player != "OOP" || len(pos.Actions) != 2 {
		t.Fatalf("root position: %+v", pos)
	}
	if pos.Board != "QsJh2h7c3d" {
		t.Errorf("board: got %q", pos.Board)
	}

	var solved sessionInfo
	do(t, ts, "POST", base+"/solve", `{"max_iterations": 20}`, http.StatusOK, &solved)
	if solved.Iteration != 20 {
		t.Errorf("iteration: got %d, want 20", solved.Iteration)
	}
	if solved.Exploitability == nil || *solved.Exploitability < 0 {
		t.Errorf("exploitability: got %v", solved.Exploitability)
	}

	var strategy struct {
		Hands    []string    `json:"hands"`
		Actions  []string    `json:"actions"`
		Strategy [][]float32 `json:"strategy"`
	}
	do(t, ts, "GET", base+"/strategy", "", http.StatusOK, &strategy)
	if len(strategy.Hands) != 12 || len(strategy.Strategy) != 12 {
		t.Fatalf("got %d hands, want 12", len(strategy.Hands))
	}
	for i, row := range strategy.Strategy {
		var sum float64
		for _, p := range row {
			sum += float64(p)
		}
		if math.Abs(sum-1) > 1e-4 {
			t.Errorf("%s: strategy sums to %v", strategy.Hands[i], sum)
		}
	}

	do(t, ts, "GET", base+"/ev/oop", "", http.StatusConflict, nil)
	do(t, ts, "POST", base+"/weights", "", http.StatusNoContent, nil)
	var ev handValues
	do(t, ts, "GET", base+"/ev/oop", "", http.StatusOK, &ev)
	if len(ev.Values) != 12 || len(ev.Hands) != 12 {
		t.Errorf("got %d values, want 12", len(ev.Values))
	}
	var equity handValues
	do(t, ts, "GET", base+"/equity/ip", "", http.StatusOK, &equity)
	if len(equity.Values) != 6 {
		t.Errorf("got %d IP equities, want 6", len(equity.Values))
	}
	do(t, ts, "GET", base+"/equity/villain", "", http.StatusBadRequest, nil)

	do(t, ts, "POST", base+"/play", `{"index": 5}`, http.StatusUnprocessableEntity, nil)
	do(t, ts, "POST", base+"/play", `{"index": 1}`, http.StatusOK, &pos)
	if pos.Player != "IP" || len(pos.Actions) != 2 || pos.Actions[0] != "Fold" {
		t.Errorf("after all-in: %+v", pos)
	}
	do(t, ts, "POST", base+"/root", "", http.StatusOK, &pos)
	if len(pos.History) != 0 {
		t.Errorf("history after root: %v", pos.History)
	}

	var memory map[string]any
	do(t, ts, "GET", base+"/memory", "", http.StatusOK, &memory)
	if memory["uncompressed_human"] == "" {
		t.Errorf("memory: %v", memory)
	}

	do(t, ts, "POST", base+"/finalize", "", http.StatusOK, nil)
	do(t, ts, "POST", base+"/step", "", http.StatusConflict, nil)
	do(t, ts, "POST", base+"/resume", "", http.StatusOK, nil)
	do(t, ts, "POST", base+"/step", "", http.StatusOK, &solved)
	if solved.Iteration != 21 {
		t.Errorf("iteration after step: got %d, want 21", solved.Iteration)
	}
}

func TestSaveAndLoad(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts)
	base := "/sessions/" + id

	do(t, ts, "POST", base+"/solve", `{"max_iterations": 10}`, http.StatusOK, nil)
	do(t, ts, "POST", base+"/save", `{"name": "river"}`, http.StatusOK, nil)
	do(t, ts, "POST", base+"/save", `{}`, http.StatusBadRequest, nil)

	var games struct {
		Games []struct {
			Name string `json:"name"`
		} `json:"games"`
	}
	do(t, ts, "GET", "/games", "", http.StatusOK, &games)
	if len(games.Games) != 1 || games.Games[0].Name != "river" {
		t.Fatalf("stored games: %+v", games)
	}

	var loaded sessionInfo
	do(t, ts, "POST", "/sessions/load", `{"name": "river"}`, http.StatusCreated, &loaded)
	if loaded.ID == id {
		t.Error("load reused the original session id")
	}
	if loaded.Iteration != 10 {
		t.Errorf("loaded iteration: got %d, want 10", loaded.Iteration)
	}
	do(t, ts, "POST", "/sessions/load", `{"name": "missing"}`, http.StatusNotFound, nil)

	var list struct {
		Sessions []sessionInfo `json:"sessions"`
	}
	do(t, ts, "GET", "/sessions", "", http.StatusOK, &list)
	if len(list.Sessions) != 2 {
		t.Errorf("got %d sessions, want 2", len(list.Sessions))
	}
}

func TestErrors(t *testing.T) {
	ts := newTestServer(t)

	do(t, ts, "POST", "/sessions", `{"oop_range": "AA", "ip_range": "KK", "board": "Qs"}`,
		http.StatusBadRequest, nil)
	do(t, ts, "POST", "/sessions", `{not json`, http.StatusBadRequest, nil)
	do(t, ts, "GET", "/sessions/not-a-uuid/actions", "", http.StatusNotFound, nil)

	id := createSession(t, ts)
	do(t, ts, "DELETE", "/sessions/"+id, "", http.StatusNoContent, nil)
	do(t, ts, "GET", "/sessions/"+id+"/actions", "", http.StatusNotFound, nil)
	do(t, ts, "DELETE", "/sessions/"+id, "", http.StatusNotFound, nil)
}

func TestListSessionsWhileBusy(t *testing.T) {
	srv, ts := newServer(t)
	id := createSession(t, ts)
	sess, err := srv.Sessions.Get(id)
	if err != nil {
		t.Fatal(err)
	}

	started := make(chan struct{})
	release := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		sess.Do(func(g *postflop.Game) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	var list struct {
		Sessions []sessionInfo `json:"sessions"`
	}
	do(t, ts, "GET", "/sessions", "", http.StatusOK, &list)
	close(release)
	<-finished

	if len(list.Sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(list.Sessions))
	}
	if got := list.Sessions[0]; !got.Busy || got.ID != id || got.Created == "" {
		t.Errorf("busy session listed as %+v", got)
	}

	var idle struct {
		Sessions []sessionInfo `json:"sessions"`
	}
	do(t, ts, "GET", "/sessions", "", http.StatusOK, &idle)
	if got := idle.Sessions[0]; got.Busy || got.State == "" {
		t.Errorf("idle session listed as %+v", got)
	}
}
