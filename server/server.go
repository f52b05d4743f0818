// Package server exposes solver sessions over a JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/timpalpant/postflop"
	"github.com/timpalpant/postflop/job"
	"github.com/timpalpant/postflop/store"
	"github.com/timpalpant/postflop/tree"
)

// Server handles the HTTP API. Store may be nil, in which case save and
// load requests fail.
type Server struct {
	Sessions *Manager
	Store    store.Store
	// SolveTimeout bounds a single solve request. Zero means no limit.
	SolveTimeout time.Duration
}

func New(s store.Store) *Server {
	return &Server{Sessions: NewManager(), Store: s}
}

// Router returns the API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "sessions": s.Sessions.Len()})
	})

	r.Get("/games", s.listGames)

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.listSessions)
		r.Post("/", s.createSession)
		r.Post("/load", s.loadSession)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.withGame(s.describe))
			r.Delete("/", s.deleteSession)
			r.Post("/solve", s.withGame(s.solve))
			r.Post("/step", s.withGame(s.step))
			r.Get("/exploitability", s.withGame(s.exploitability))
			r.Post("/finalize", s.withGame(s.finalize))
			r.Post("/resume", s.withGame(s.resume))
			r.Get("/actions", s.withGame(s.actions))
			r.Post("/play", s.withGame(s.play))
			r.Post("/root", s.withGame(s.backToRoot))
			r.Get("/strategy", s.withGame(s.strategy))
			r.Post("/weights", s.withGame(s.cacheWeights))
			r.Get("/weights/{player}", s.withGame(s.weights))
			r.Get("/ev/{player}", s.withGame(s.expectedValues))
			r.Get("/equity/{player}", s.withGame(s.equity))
			r.Get("/memory", s.withGame(s.memory))
			r.Post("/save", s.withGame(s.save))
		})
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		glog.V(1).Infof("%s %s -> %d in %v [%s]", r.Method, r.URL.Path,
			ww.Status(), time.Since(start), middleware.GetReqID(r.Context()))
	})
}

type gameHandler func(w http.ResponseWriter, r *http.Request, g *postflop.Game) error

// withGame resolves the session in the URL and runs h while holding it.
func (s *Server) withGame(h gameHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.Sessions.Get(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		err = sess.Do(func(g *postflop.Game) error {
			return h(w, r, g)
		})
		if err != nil {
			writeError(w, err)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		glog.Warningf("Error writing response: %v", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// statusOf maps an error to its HTTP status and a short kind label.
func statusOf(err error) (int, string) {
	var (
		cfgErr   *postflop.ConfigurationError
		orderErr *postflop.OrderingError
		navErr   *postflop.NavigationError
		codecErr *postflop.CodecError
		reqErr   *requestError
	)
	switch {
	case errors.As(err, &cfgErr):
		return http.StatusBadRequest, "configuration"
	case errors.As(err, &reqErr):
		return http.StatusBadRequest, "request"
	case errors.As(err, &navErr):
		return http.StatusUnprocessableEntity, "navigation"
	case errors.As(err, &orderErr):
		return http.StatusConflict, "ordering"
	case errors.As(err, &codecErr):
		return http.StatusUnprocessableEntity, "codec"
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, kind := statusOf(err)
	if status == http.StatusInternalServerError {
		glog.Errorf("Internal error: %+v", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: kind})
}

// requestError reports a malformed request body or parameter.
type requestError struct {
	err error
}

func (e *requestError) Error() string { return "bad request: " + e.err.Error() }

func decodeBody(r *http.Request, v any) error {
	if r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &requestError{err}
	}
	return nil
}

func playerParam(r *http.Request) (int, error) {
	switch p := chi.URLParam(r, "player"); p {
	case "0", "oop", "OOP":
		return 0, nil
	case "1", "ip", "IP":
		return 1, nil
	default:
		return 0, &requestError{errors.Errorf("unknown player %q", p)}
	}
}

type sessionInfo struct {
	ID               string   `json:"id"`
	State            string   `json:"state"`
	Iteration        int      `json:"iteration"`
	Compressed       bool     `json:"compressed"`
	NumNodes         int      `json:"num_nodes,omitempty"`
	NumDecisionNodes int      `json:"num_decision_nodes,omitempty"`
	Board            string   `json:"board,omitempty"`
	Created          string   `json:"created,omitempty"`
	Exploitability   *float32 `json:"exploitability,omitempty"`
	Busy             bool     `json:"busy,omitempty"`
}

func describeGame(id string, g *postflop.Game) sessionInfo {
	info := sessionInfo{
		ID:         id,
		State:      g.State().String(),
		Iteration:  g.Iteration(),
		Compressed: g.IsCompressed(),
	}
	if t := g.Tree(); t != nil {
		info.NumNodes = t.NumNodes()
		info.NumDecisionNodes = t.NumDecisionNodes()
		info.Board = formatCards(g.Board())
	}
	return info
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.Sessions.List()
	result := make([]sessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		// Sessions in the middle of a solve are listed without game details.
		info := sessionInfo{ID: sess.ID.String(), Busy: true}
		sess.TryDo(func(g *postflop.Game) error {
			info = describeGame(sess.ID.String(), g)
			return nil
		})
		info.Created = humanize.Time(sess.Created)
		result = append(result, info)
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": result})
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var j job.Job
	if err := decodeBody(r, &j); err != nil {
		writeError(w, err)
		return
	}

	g, err := j.NewGame()
	if err != nil {
		writeError(w, err)
		return
	}
	sess := s.Sessions.Add(g)
	glog.Infof("Created session %v: %d nodes", sess.ID, g.Tree().NumNodes())
	writeJSON(w, http.StatusCreated, describeGame(sess.ID.String(), g))
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.Sessions.Delete(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) describe(w http.ResponseWriter, r *http.Request, g *postflop.Game) error {
	writeJSON(w, http.StatusOK, describeGame(chi.URLParam(r, "id"), g))
	return nil
}

type solveRequest struct {
	MaxIterations int     `json:"max_iterations"`
	Target        float32 `json:"target_exploitability"`
}

func (s *Server) solve(w http.ResponseWriter, r *http.Request, g *postflop.Game) error {
	req := solveRequest{MaxIterations: 100}
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	if req.MaxIterations < 0 {
		return &requestError{errors.Errorf("max_iterations %d is negative", req.MaxIterations)}
	}

	ctx := r.Context()
	if s.SolveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.SolveTimeout)
		defer cancel()
	}

	exploitability, err := g.SolveContext(ctx, req.MaxIterations, req.Target, nil)
	if err != nil && ctx.Err() == nil {
		return err
	}
	info := describeGame(chi.URLParam(r, "id"), g)
	info.Exploitability = &exploitability
	writeJSON(w, http.StatusOK, info)
	return nil
}

func (s *Server) step(w http.ResponseWriter, r *http.Request, g *postflop.Game) error {
	if err := g.SolveStep(); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, describeGame(chi.URLParam(r, "id"), g))
	return nil
}

func (s *Server) exploitability(w http.ResponseWriter, r *http.Request, g *postflop.Game) error {
	e, err := g.Exploitability()
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"exploitability": e, "iteration": g.Iteration()})
	return nil
}

func (s *Server) finalize(w http.ResponseWriter, r *http.Request, g *postflop.Game) error {
	if err := g.Finalize(); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, describeGame(chi.URLParam(r, "id"), g))
	return nil
}

func (s *Server) resume(w http.ResponseWriter, r *http.Request, g *postflop.Game) error {
	if err := g.Resume(); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, describeGame(chi.URLParam(r, "id"), g))
	return nil
}

type positionResponse struct {
	Player  string   `json:"player"`
	Actions []string `json:"actions"`
	History []int    `json:"history"`
	Board   string   `json:"board"`
}

func position(g *postflop.Game) (positionResponse, error) {
	actions, err := g.AvailableActions()
	if err != nil {
		return positionResponse{}, err
	}
	player, err := g.CurrentPlayer()
	if err != nil {
		return positionResponse{}, err
	}
	resp := positionResponse{
		Player:  tree.PlayerString(player),
		Actions: make([]string, len(actions)),
		History: g.History(),
		Board:   formatCards(g.Board()),
	}
	for i, a := range actions {
		resp.Actions[i] = a.String()
	}
	return resp, nil
}

func (s *Server) actions(w http.ResponseWriter, r *http.Request, g *postflop.Game) error {
	resp, err := position(g)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}

type playRequest struct {
	Index int `json:"index"`
}

func (s *Server) play(w http.ResponseWriter, r *http.Request, g *postflop.Game) error {
	var req playRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	if err := g.Play(req.Index); err != nil {
		return err
	}
	return s.actions(w, r, g)
}

func (s *Server) backToRoot(w http.ResponseWriter, r *http.Request, g *postflop.Game) error {
	if err := g.BackToRoot(); err != nil {
		return err
	}
	return s.actions(w, r, g)
}

func (s *Server) strategy(w http.ResponseWriter, r *http.Request, g *postflop.Game) error {
	strategy, err := g.Strategy()
	if err != nil {
		return err
	}
	player, _ := g.CurrentPlayer()
	hands, err := g.PrivateHands(int(player))
	if err != nil {
		return err
	}
	actions, _ := g.AvailableActions()

	resp := struct {
		Player   string      `json:"player"`
		Actions  []string    `json:"actions"`
		Hands    []string    `json:"hands"`
		Strategy [][]float32 `json:"strategy"`
	}{
		Player:   tree.PlayerString(player),
		Actions:  make([]string, len(actions)),
		Hands:    make([]string, len(hands)),
		Strategy: make([][]float32, len(hands)),
	}
	for i, a := range actions {
		resp.Actions[i] = a.String()
	}
	for h := range hands {
		resp.Hands[h] = hands[h].String()
		resp.Strategy[h] = strategy[h*len(actions) : (h+1)*len(actions)]
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}

func (s *Server) cacheWeights(w http.ResponseWriter, r *http.Request, g *postflop.Game) error {
	if err := g.CacheNormalizedWeights(); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

type handValues struct {
	Player string    `json:"player"`
	Hands  []string  `json:"hands"`
	Values []float32 `json:"values"`
}

func (s *Server) perHand(w http.ResponseWriter, r *http.Request, g *postflop.Game,
	query func(g *postflop.Game, player int) ([]float32, error)) error {
	player, err := playerParam(r)
	if err != nil {
		return err
	}
	values, err := query(g, player)
	if err != nil {
		return err
	}
	hands, err := g.PrivateHands(player)
	if err != nil {
		return err
	}

	resp := handValues{
		Player: tree.PlayerString(uint8(player)),
		Hands:  make([]string, len(hands)),
		Values: values,
	}
	for i, h := range hands {
		resp.Hands[i] = h.String()
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}

func (s *Server) weights(w http.ResponseWriter, r *http.Request, g *postflop.Game) error {
	return s.perHand(w, r, g, (*postflop.Game).NormalizedWeights)
}

func (s *Server) expectedValues(w http.ResponseWriter, r *http.Request, g *postflop.Game) error {
	return s.perHand(w, r, g, (*postflop.Game).ExpectedValues)
}

func (s *Server) equity(w http.ResponseWriter, r *http.Request, g *postflop.Game) error {
	return s.perHand(w, r, g, (*postflop.Game).Equity)
}

func (s *Server) memory(w http.ResponseWriter, r *http.Request, g *postflop.Game) error {
	uncompressed, compressed, err := g.MemoryUsage()
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"uncompressed":       uncompressed,
		"compressed":         compressed,
		"uncompressed_human": humanize.Bytes(uncompressed),
		"compressed_human":   humanize.Bytes(compressed),
	})
	return nil
}

type namedRequest struct {
	Name string `json:"name"`
}

func (s *Server) requireStore() error {
	if s.Store == nil {
		return errors.New("no game store is configured")
	}
	return nil
}

func (s *Server) save(w http.ResponseWriter, r *http.Request, g *postflop.Game) error {
	var req namedRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	if req.Name == "" {
		return &requestError{errors.New("name is required")}
	}
	if err := s.requireStore(); err != nil {
		return err
	}
	if err := store.SaveGame(r.Context(), s.Store, req.Name, g); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"name": req.Name})
	return nil
}

func (s *Server) loadSession(w http.ResponseWriter, r *http.Request) {
	var req namedRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.requireStore(); err != nil {
		writeError(w, err)
		return
	}

	g := postflop.New()
	if err := store.LoadGame(r.Context(), s.Store, req.Name, g); err != nil {
		writeError(w, err)
		return
	}
	sess := s.Sessions.Add(g)
	glog.Infof("Loaded %q into session %v", req.Name, sess.ID)
	writeJSON(w, http.StatusCreated, describeGame(sess.ID.String(), g))
}

func (s *Server) listGames(w http.ResponseWriter, r *http.Request) {
	if err := s.requireStore(); err != nil {
		writeError(w, err)
		return
	}
	entries, err := s.Store.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	type game struct {
		Name    string `json:"name"`
		Size    string `json:"size"`
		Updated string `json:"updated"`
	}
	result := make([]game, len(entries))
	for i, e := range entries {
		result[i] = game{
			Name:    e.Name,
			Size:    humanize.Bytes(uint64(e.Size)),
			Updated: humanize.Time(e.UpdatedAt),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"games": result})
}

func formatCards[T interface{ String() string }](cs []T) string {
	var b []byte
	for _, c := range cs {
		b = append(b, c.String()...)
	}
	return string(b)
}
