package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"codeberg.org/mutker/vehiclectl/internal/catalog"
	"codeberg.org/mutker/vehiclectl/internal/errors"
	"codeberg.org/mutker/vehiclectl/internal/ignition"
	"codeberg.org/mutker/vehiclectl/internal/metrics"
	"codeberg.org/mutker/vehiclectl/internal/property"
	"codeberg.org/mutker/vehiclectl/internal/telemetry"
)

const defaultLogLines = 50

type healthResponse struct {
	Status     string          `json:"status"`
	Bridge     property.Status `json:"bridge"`
	Aggregator string          `json:"aggregator"`
	Suppressed []string        `json:"suppressed_properties"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{
		Status:     "ok",
		Bridge:     s.deps.Bridge.Status(),
		Aggregator: s.deps.Aggregator.Status(),
		Suppressed: s.deps.Aggregator.SuppressedProperties(),
	}
	if resp.Suppressed == nil {
		resp.Suppressed = []string{}
	}

	status := http.StatusOK
	if resp.Aggregator == metrics.StatusHardwareUnavailable {
		resp.Status = "unavailable"
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, resp)
}

type snapshotResponse struct {
	Version  uint64                    `json:"version"`
	Snapshot telemetry.VehicleSnapshot `json:"snapshot"`
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	snap, ver := s.deps.Aggregator.Snapshots().Load()
	if ver == 0 {
		respondError(w, http.StatusServiceUnavailable,
			errors.New().WithMessage(ErrNotAvailable, "no snapshot published yet"))
		return
	}
	respondJSON(w, http.StatusOK, snapshotResponse{Version: ver, Snapshot: snap})
}

type ignitionResponse struct {
	ignition.State
	Label          string `json:"label"`
	IsOn           bool   `json:"is_on"`
	IsOff          bool   `json:"is_off"`
	IsIntermediate bool   `json:"is_intermediate"`
}

func (s *Server) handleIgnition(w http.ResponseWriter, _ *http.Request) {
	st, ver := s.deps.Ignition.Load()
	if ver == 0 {
		respondError(w, http.StatusServiceUnavailable,
			errors.New().WithMessage(ErrNotAvailable, "no ignition state observed yet"))
		return
	}
	respondJSON(w, http.StatusOK, ignitionResponse{
		State:          st,
		Label:          st.Label(),
		IsOn:           st.IsOn(),
		IsOff:          st.IsOff(),
		IsIntermediate: st.IsIntermediate(),
	})
}

func (s *Server) handleHeating(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.deps.Heating.State())
}

// handleUpdateHeating merges the request body over the current settings,
// so clients may send only the fields they change.
func (s *Server) handleUpdateHeating(w http.ResponseWriter, r *http.Request) {
	errFactory := errors.New()

	settings := s.deps.Heating.Settings()
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		respondError(w, http.StatusBadRequest, errFactory.Wrap(ErrBadRequest, err).WithMessage("invalid JSON"))
		return
	}

	if err := s.deps.Heating.UpdateSettings(settings); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	if s.deps.Prefs != nil {
		if err := s.deps.Prefs.SaveHeating(r.Context(), settings); err != nil {
			s.log.Warn().Err(err).Msg("Failed to persist heating settings")
		}
	}

	respondJSON(w, http.StatusOK, settings)
}

type driveModeRequest struct {
	Mode string `json:"mode"`
}

type driveModeResponse struct {
	Mode string `json:"mode"`
}

func (s *Server) handleDriveMode(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, driveModeResponse{Mode: s.deps.DriveModes.Mode()})
}

func (s *Server) handleApplyDriveMode(w http.ResponseWriter, r *http.Request) {
	errFactory := errors.New()

	var req driveModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errFactory.Wrap(ErrBadRequest, err).WithMessage("invalid JSON"))
		return
	}

	m := catalog.ModeFromKey(req.Mode)
	if !m.IsKnown() {
		respondError(w, http.StatusBadRequest, errFactory.WithData(ErrBadRequest, req.Mode).WithMessage("unknown drive mode"))
		return
	}

	if err := s.deps.DriveModes.Apply(r.Context(), m); err != nil {
		respondError(w, http.StatusBadGateway, err)
		return
	}

	if s.deps.Prefs != nil {
		if err := s.deps.Prefs.SaveDriveMode(r.Context(), m); err != nil {
			s.log.Warn().Err(err).Msg("Failed to persist drive mode")
		}
	}

	respondJSON(w, http.StatusOK, driveModeResponse{Mode: s.deps.DriveModes.Mode()})
}

type logLine struct {
	Text  string `json:"text"`
	Count int    `json:"count"`
}

func (s *Server) handleDriveModeLog(w http.ResponseWriter, r *http.Request) {
	n := defaultLogLines
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			respondError(w, http.StatusBadRequest, errors.New().WithData(ErrBadRequest, v).WithMessage("n must be a non-negative integer"))
			return
		}
		n = parsed
	}

	entries := s.deps.DriveModes.Entries(n)
	lines := make([]logLine, len(entries))
	for i, e := range entries {
		lines[i] = logLine{Text: e.String(), Count: e.Count}
	}
	respondJSON(w, http.StatusOK, lines)
}
