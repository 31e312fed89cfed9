package server

import (
	"encoding/json"
	"maps"
	"net/http"
	"slices"
	"time"

	"github.com/Iron-Ham/prism/internal/broadcast"
	"github.com/Iron-Ham/prism/internal/event"
	"github.com/Iron-Ham/prism/internal/planner"
	"github.com/Iron-Ham/prism/internal/render"
	"github.com/Iron-Ham/prism/internal/timing"
)

type stateEntry struct {
	Type       string    `json:"type"`
	ProducerID int       `json:"producer_id"`
	Data       any       `json:"data"`
	Timestamp  time.Time `json:"timestamp"`
	Seq        uint64    `json:"seq"`
}

type stateResponse struct {
	Seq     uint64       `json:"seq"`
	Entries []stateEntry `json:"entries"`
}

type timingResponse struct {
	Strategy timing.Strategy `json:"strategy"`
	TotalMs  float64         `json:"total_ms"`
	timing.Snapshot
}

type statsResponse struct {
	Frames   uint64          `json:"frames"`
	Clients  int             `json:"clients"`
	Bus      event.Stats     `json:"bus"`
	Pipeline render.Stats    `json:"pipeline"`
	Queue    broadcast.Stats `json:"queue"`
}

type overrideRequest struct {
	Variant string `json:"variant"`
	Merge   string `json:"merge"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"frames": s.rt.Frames(),
	})
}

// handleState returns every (type, producer) entry, or only those of the
// type given by ?type=.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	snap := s.rt.Bus().Store().Snapshot()
	types := snap.Types()
	if only := r.URL.Query().Get("type"); only != "" {
		types = []string{only}
	}

	resp := stateResponse{Seq: snap.Seq(), Entries: []stateEntry{}}
	for _, t := range types {
		all := snap.All(t)
		for _, producer := range slices.Sorted(maps.Keys(all)) {
			e := all[producer]
			resp.Entries = append(resp.Entries, stateEntry{
				Type:       e.Type,
				ProducerID: e.ProducerID,
				Data:       e.Data,
				Timestamp:  e.Timestamp,
				Seq:        e.Seq,
			})
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTiming(w http.ResponseWriter, _ *http.Request) {
	tracker := s.rt.Tracker()
	snap := tracker.Snapshot(render.Names(s.rt.Renderers()))
	writeJSON(w, http.StatusOK, timingResponse{
		Strategy: tracker.Strategy(),
		TotalMs:  snap.TotalMs(),
		Snapshot: snap,
	})
}

func (s *Server) handlePlan(w http.ResponseWriter, _ *http.Request) {
	obs, ok := s.rt.Pipeline().LastObservation()
	if !ok {
		writeError(w, http.StatusNotFound, "no frame has been planned yet")
		return
	}
	writeJSON(w, http.StatusOK, obs)
}

// handleSetOverride forces the planner per axis. "auto" or an empty value
// hands the axis back to the planner.
func (s *Server) handleSetOverride(w http.ResponseWriter, r *http.Request) {
	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	variant, err := planner.ParseVariant(req.Variant)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	merge, err := planner.ParseMerge(req.Merge)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ov := planner.Override{Variant: variant, Merge: merge}
	s.rt.SetOverride(ov)
	s.logger.Info("planner override changed", "override", ov.Key())
	writeJSON(w, http.StatusOK, map[string]string{"override": ov.Key()})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statsResponse{
		Frames:   s.rt.Frames(),
		Clients:  s.Clients(),
		Bus:      s.rt.Bus().Stats(),
		Pipeline: s.rt.Pipeline().Stats(),
		Queue:    s.rt.Queue().Stats(),
	})
}
