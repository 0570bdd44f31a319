package web

import (
	"net/http"
	"strconv"

	"github.com/JonMunkholm/csvmerge/internal/history"
	"github.com/JonMunkholm/csvmerge/internal/logging"
	"github.com/JonMunkholm/csvmerge/internal/profile"
	"github.com/JonMunkholm/csvmerge/internal/web/templates"
)

const (
	defaultRunsLimit = 50
	maxRunsLimit     = 500
	pageRuns         = 10
)

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// handleIndex renders the upload page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	runs, err := s.service.Runs(ctx, pageRuns)
	if err != nil {
		// The page still works without history.
		logging.FromContext(ctx).Warn("load recent runs", "error", err)
	}

	data := templates.IndexData{
		DefaultProfile: s.service.DefaultProfile(),
		KeyColumn:      s.cfg.Merge.KeyColumn,
		OutputName:     s.cfg.Merge.OutputName,
		MaxFiles:       s.cfg.Upload.MaxFiles,
		MaxFileSizeMB:  s.cfg.Upload.MaxFileSize / (1 << 20),
		Runs:           toRunRows(runs),
	}
	for _, p := range s.service.Profiles() {
		data.Profiles = append(data.Profiles, toProfileOption(p))
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.Index(data).Render(ctx, w); err != nil {
		logging.FromContext(ctx).Error("render index", "error", err)
	}
}

// ProfileResponse is one profile in GET /api/profiles.
type ProfileResponse struct {
	profile.Profile
	FilterSummary string `json:"filterSummary,omitempty"`
}

// handleListProfiles returns the merge profiles and the default name.
func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles := s.service.Profiles()
	out := make([]ProfileResponse, len(profiles))
	for i, p := range profiles {
		out[i] = ProfileResponse{Profile: p, FilterSummary: p.Filter.Describe(p.KeyColumn)}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"default":  s.service.DefaultProfile(),
		"profiles": out,
	})
}

// handleListRuns returns recent run history, newest first.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := min(parseIntParam(r, "limit", defaultRunsLimit), maxRunsLimit)

	runs, err := s.service.Runs(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []history.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// handleStatus reports merge slot usage.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Status())
}

// handleHealth reports that the process is up.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"merges": s.service.Status(),
	})
}

func toProfileOption(p profile.Profile) templates.ProfileOption {
	return templates.ProfileOption{
		Name:        p.Name,
		Description: p.Description,
		Filter:      p.Filter.Describe(p.KeyColumn),
	}
}

func toRunRows(runs []history.Run) []templates.RunRow {
	rows := make([]templates.RunRow, len(runs))
	for i, run := range runs {
		rows[i] = templates.RunRow{
			ID:        run.ID.String(),
			StartedAt: run.StartedAt,
			Profile:   run.Profile,
			Sources:   len(run.Sources),
			RowsOut:   run.RowsOut,
			Status:    string(run.Status),
			ErrorCode: run.ErrorCode,
		}
	}
	return rows
}
