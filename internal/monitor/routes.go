// Package monitor serves the turret's debug pages on the /debug/ mux.
package monitor

import (
	"net/http"

	"tailscale.com/tsweb"

	"github.com/banshee-data/dovechaser/internal/aim"
	"github.com/banshee-data/dovechaser/internal/anglemap"
	"github.com/banshee-data/dovechaser/internal/chaser"
	"github.com/banshee-data/dovechaser/internal/httputil"
	"github.com/banshee-data/dovechaser/internal/target"
	"github.com/banshee-data/dovechaser/internal/version"
)

// AimStatus is implemented by *aim.Controller.
type AimStatus interface {
	Status() aim.Status
}

// TargetSource is implemented by *target.Tracker.
type TargetSource interface {
	Snapshot() target.Snapshot
}

// EngagementLog is implemented by *chaser.Runner.
type EngagementLog interface {
	History() []chaser.Engagement
	Counts() map[chaser.Outcome]int
}

// LinkStats is implemented by *serialmux.SerialMux.
type LinkStats interface {
	Name() string
	Stats() map[string]int
}

// Sources is what the debug pages report on. Nil fields are omitted from
// the output.
type Sources struct {
	Aim         AimStatus
	Target      TargetSource
	Engagements EngagementLog
	Links       []LinkStats
	AngleMap    *anglemap.Map
}

// StatusResponse is the body of /debug/aim.
type StatusResponse struct {
	Version     version.Info              `json:"version"`
	Aim         *aim.Status               `json:"aim,omitempty"`
	Target      *target.Snapshot          `json:"target,omitempty"`
	Engagements []chaser.Engagement       `json:"engagements,omitempty"`
	Outcomes    map[chaser.Outcome]int    `json:"outcomes,omitempty"`
	Links       map[string]map[string]int `json:"links,omitempty"`
}

// Status assembles the current StatusResponse.
func (s Sources) Status() StatusResponse {
	resp := StatusResponse{Version: version.Current()}
	if s.Aim != nil {
		st := s.Aim.Status()
		resp.Aim = &st
	}
	if s.Target != nil {
		snap := s.Target.Snapshot()
		resp.Target = &snap
	}
	if s.Engagements != nil {
		resp.Engagements = s.Engagements.History()
		resp.Outcomes = s.Engagements.Counts()
	}
	if len(s.Links) > 0 {
		resp.Links = make(map[string]map[string]int, len(s.Links))
		for _, l := range s.Links {
			resp.Links[l.Name()] = l.Stats()
		}
	}
	return resp
}

// AttachRoutes registers /debug/aim, /debug/anglemap and
// /debug/anglemap.json on mux.
func AttachRoutes(mux *http.ServeMux, s Sources) {
	debug := tsweb.Debugger(mux)

	debug.HandleFunc("aim", "aim controller, target and engagement status", func(w http.ResponseWriter, r *http.Request) {
		if !httputil.GetOnly(w, r) {
			return
		}
		httputil.WriteJSON(w, http.StatusOK, s.Status())
	})

	if s.AngleMap == nil {
		return
	}
	debug.HandleFunc("anglemap", "pitch linkage angle map chart", func(w http.ResponseWriter, r *http.Request) {
		if !httputil.GetOnly(w, r) {
			return
		}
		handleAngleMapChart(w, s.AngleMap)
	})
	debug.HandleSilentFunc("anglemap.json", func(w http.ResponseWriter, r *http.Request) {
		if !httputil.GetOnly(w, r) {
			return
		}
		httputil.WriteJSON(w, http.StatusOK, struct {
			Forward []anglemap.Entry        `json:"forward"`
			Inverse []anglemap.InverseEntry `json:"inverse"`
		}{s.AngleMap.Table(), s.AngleMap.InverseTable()})
	})
}
