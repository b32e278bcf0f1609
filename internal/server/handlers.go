package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/satindergrewal/liteshow/internal/audio"
	"github.com/satindergrewal/liteshow/internal/camera"
	"github.com/satindergrewal/liteshow/internal/engine"
	"github.com/satindergrewal/liteshow/internal/fx"
	"github.com/satindergrewal/liteshow/internal/jamendo"
	"github.com/satindergrewal/liteshow/internal/transport"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy onto HTTP statuses. Superseded and
// aborted loads get a distinct code so clients can drop them silently.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := "internal"

	var de *audio.DecodeError
	var fe *jamendo.FetchError
	switch {
	case errors.Is(err, engine.ErrSuperseded), jamendo.IsAbort(err):
		status, code = http.StatusConflict, "superseded"
	case errors.Is(err, fx.ErrUnknownEffect):
		status, code = http.StatusNotFound, "unknown_effect"
	case errors.As(err, &de):
		status, code = http.StatusUnprocessableEntity, "decode"
	case errors.Is(err, jamendo.ErrNoClientID):
		status, code = http.StatusServiceUnavailable, "not_configured"
	case errors.Is(err, jamendo.ErrTooLarge):
		status, code = http.StatusRequestEntityTooLarge, "too_large"
	case errors.Is(err, jamendo.ErrForbiddenHost):
		status, code = http.StatusForbidden, "forbidden_host"
	case errors.Is(err, jamendo.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, jamendo.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		status, code = http.StatusGatewayTimeout, "timeout"
	case errors.As(err, &fe):
		status, code = http.StatusBadGateway, "network"
	case errors.Is(err, engine.ErrStopped):
		status, code = http.StatusServiceUnavailable, "stopped"
	}
	if code != "superseded" {
		log.Printf("API error (%s): %v", code, err)
	}
	writeJSON(w, status, map[string]any{"error": err.Error(), "code": code})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// handleState returns the latest snapshot, spectrum included.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	snap := s.loop.Latest()
	if r.URL.Query().Get("lite") != "" {
		snap = snap.Lite()
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleEffect(w http.ResponseWriter, r *http.Request) {
	effect, err := fx.Parse(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.loop.Do(r.Context(), func(e *engine.Engine) { e.Trigger(effect) }); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "effect": effect.String()})
}

// transportOp runs op on the engine loop and replies with the resulting
// transport state.
func (s *Server) transportOp(w http.ResponseWriter, r *http.Request, op func(*transport.Transport) error) {
	var (
		state transport.State
		opErr error
	)
	err := s.loop.Do(r.Context(), func(e *engine.Engine) {
		opErr = op(e.Transport())
		state = e.Transport().State()
	})
	if err == nil {
		err = opErr
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	s.transportOp(w, r, (*transport.Transport).Play)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.transportOp(w, r, func(t *transport.Transport) error {
		t.Pause()
		return nil
	})
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	s.transportOp(w, r, (*transport.Transport).Toggle)
}

// maxSeekSeconds is far beyond any track and well inside time.Duration.
const maxSeekSeconds = 1e9

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req struct {
		T *float64 `json:"t"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.T == nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	// Clamp in float space; huge values would overflow the conversion.
	secs := min(max(*req.T, 0), maxSeekSeconds)
	pos := time.Duration(secs * float64(time.Second))
	s.transportOp(w, r, func(t *transport.Transport) error { return t.Seek(pos) })
}

func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	var req struct {
		V *float64 `json:"v"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.V == nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	s.transportOp(w, r, func(t *transport.Transport) error {
		t.SetVolume(*req.V)
		return nil
	})
}

type pointerReq struct {
	Type string  `json:"type"` // down, move or up
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	W    float64 `json:"w"`
	H    float64 `json:"h"`
	OnUI bool    `json:"onUI"`
}

func (s *Server) handlePointer(w http.ResponseWriter, r *http.Request) {
	var req pointerReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	var fn func(e *engine.Engine)
	var res camera.DragResult
	switch req.Type {
	case "down":
		fn = func(e *engine.Engine) { e.PointerDown(req.X, req.Y, req.OnUI) }
	case "move":
		if req.W <= 0 || req.H <= 0 {
			http.Error(w, "move needs a positive viewport", http.StatusBadRequest)
			return
		}
		fn = func(e *engine.Engine) { e.PointerMove(req.X, req.Y, req.W, req.H) }
	case "up":
		fn = func(e *engine.Engine) { res = e.PointerUp() }
	default:
		http.Error(w, "type must be down, move or up", http.StatusBadRequest)
		return
	}
	if err := s.loop.Do(r.Context(), fn); err != nil {
		writeError(w, err)
		return
	}
	if req.Type == "up" {
		writeJSON(w, http.StatusOK, res)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleUpload loads a local audio file and starts playing it.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) || strings.Contains(err.Error(), "request body too large") {
			http.Error(w, "file too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "multipart field \"file\" required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "read upload failed", http.StatusBadRequest)
		return
	}
	name := strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename))
	log.Printf("Upload: %s (%d KB)", header.Filename, len(data)/1024)

	fetch := func(context.Context) (engine.Media, error) {
		return engine.Media{Name: name, Data: data}, nil
	}
	s.load(w, r, fetch)
}

func (s *Server) handleFeatured(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"results": jamendo.Featured})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if len([]rune(q)) < jamendo.MinQueryLength {
		writeJSON(w, http.StatusOK, map[string]any{"results": []jamendo.Track{}})
		return
	}
	tracks, err := s.jamendo.Search(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}
	if tracks == nil {
		tracks = []jamendo.Track{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": tracks})
}

// handleLoadTrack loads a catalogue track and starts playing it. The body
// may carry the audio URL from a search result; without it the track is
// looked up by ID first.
func (s *Server) handleLoadTrack(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var hint jamendo.Track
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&hint); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
	}

	fetch := func(ctx context.Context) (engine.Media, error) {
		track := hint
		if track.Audio == "" {
			found, err := s.jamendo.Lookup(ctx, id)
			if err != nil {
				return engine.Media{}, err
			}
			track = found
		}
		data, _, err := s.jamendo.FetchAudio(ctx, track.Audio)
		if err != nil {
			return engine.Media{}, err
		}
		return engine.Media{Name: track.Name, Artist: track.Artist, Data: data}, nil
	}
	s.load(w, r, fetch)
}

// load runs a single-flight load and always plays the result, as a user
// picking a track expects.
func (s *Server) load(w http.ResponseWriter, r *http.Request, fetch engine.FetchFunc) {
	state, err := s.loader.Load(r.Context(), fetch, true)
	if err != nil {
		writeError(w, err)
		return
	}
	log.Printf("Loaded %q (%.1fs)", state.Name, state.Duration)
	writeJSON(w, http.StatusOK, state)
}
