package api

import (
	"errors"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/jgueth/campaign-automation/internal/campaign"
	"github.com/jgueth/campaign-automation/internal/ledger"
	"github.com/jgueth/campaign-automation/internal/logging"
	"github.com/jgueth/campaign-automation/internal/pathutil"
	"github.com/jgueth/campaign-automation/internal/report"
	"github.com/jgueth/campaign-automation/internal/runner"
)

const maxRunsLimit = 200

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// validateHandler checks a raw campaign document from the request body.
func (s *Server) validateHandler(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(w, r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "could not read request body")
		return
	}
	if len(data) == 0 {
		writeJSONError(w, http.StatusBadRequest, "request body is empty")
		return
	}
	writeJSON(w, http.StatusOK, campaign.Validate(data))
}

type campaignStatus struct {
	File   string   `json:"file"`
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

type campaignList struct {
	Dir       string           `json:"dir"`
	Total     int              `json:"total"`
	Valid     int              `json:"valid"`
	Campaigns []campaignStatus `json:"campaigns"`
}

func (s *Server) listCampaignsHandler(w http.ResponseWriter, r *http.Request) {
	results, err := campaign.ValidateAll(s.cfg.Paths.CampaignsDir)
	if err != nil {
		var perr *pathutil.PathResolutionError
		if errors.As(err, &perr) {
			writeJSONError(w, http.StatusNotFound, err.Error())
			return
		}
		logging.Get(logging.CategoryAPI).Error("Could not validate campaigns: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "could not list campaigns")
		return
	}

	out := campaignList{Dir: s.cfg.Paths.CampaignsDir, Campaigns: []campaignStatus{}}
	for _, path := range campaign.SortedPaths(results) {
		res := results[path]
		out.Campaigns = append(out.Campaigns, campaignStatus{File: filepath.Base(path), Valid: res.Valid, Errors: res.Errors})
		if res.Valid {
			out.Valid++
		}
	}
	out.Total = len(out.Campaigns)
	writeJSON(w, http.StatusOK, out)
}

type runRequest struct {
	CampaignFile string `json:"campaign_file" validate:"required"`
	Sync         bool   `json:"sync"`
}

type runAccepted struct {
	RunID        string `json:"run_id"`
	CampaignFile string `json:"campaign_file"`
	Status       string `json:"status"`
}

// submitRunHandler queues a run and answers 202 with its id.
func (s *Server) submitRunHandler(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := readJSON(w, r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeJSONError(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	if req.Sync {
		if err := s.cfg.ValidateSync(); err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	t, err := s.runs.Submit(runner.Job{
		CampaignFile: req.CampaignFile,
		Sync:         req.Sync,
		Trigger:      runner.TriggerAPI,
		Force:        true,
	})
	switch {
	case errors.Is(err, runner.ErrDuplicate) && t != nil:
		writeJSON(w, http.StatusConflict, runAccepted{RunID: t.ID, CampaignFile: t.Path, Status: "already_queued"})
		return
	case errors.Is(err, runner.ErrQueueFull), errors.Is(err, runner.ErrStopped):
		writeJSONError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logging.Get(logging.CategoryAPI).Info("Accepted run %s for %s", t.ID, req.CampaignFile)
	writeJSON(w, http.StatusAccepted, runAccepted{RunID: t.ID, CampaignFile: t.Path, Status: "queued"})
}

func (s *Server) listRunsHandler(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "run history is not available")
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxRunsLimit {
			writeJSONError(w, http.StatusBadRequest, "limit must be between 1 and 200")
			return
		}
		limit = n
	}

	runs, err := s.history.Recent(limit)
	if err != nil {
		logging.Get(logging.CategoryAPI).Error("Could not list runs: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "could not list runs")
		return
	}
	if runs == nil {
		runs = []ledger.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) latestReportHandler(w http.ResponseWriter, r *http.Request) {
	path, err := report.Latest(s.cfg.Paths.OutputDir)
	if errors.Is(err, report.ErrNoReport) {
		writeJSONError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	rep, err := report.Load(path)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("X-Report-Path", path)
	writeJSON(w, http.StatusOK, rep)
}
