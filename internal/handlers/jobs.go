package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/xelth-com/arcasync/internal/jobs"
	"github.com/xelth-com/arcasync/internal/models"
)

// trigger starts a job. With ?wait=true the request blocks until the run ends
// and the response carries its counts; otherwise it returns as soon as the
// run is accepted.
func (r *Router) trigger(job, message string) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		wait, _ := strconv.ParseBool(req.URL.Query().Get("wait"))

		run, err := r.opts.Runner.Trigger(req.Context(), job, jobs.TriggerHTTP, wait)
		switch {
		case errors.Is(err, jobs.ErrJobRunning):
			respondJSON(w, http.StatusConflict, map[string]interface{}{
				"message": "Job " + job + " is already running.",
				"data":    map[string]interface{}{"status": false},
			})
			return
		case errors.Is(err, jobs.ErrUnknownJob):
			respondError(w, http.StatusNotFound, "unknown job")
			return
		case err != nil && run == nil:
			respondError(w, http.StatusServiceUnavailable, "job could not be started")
			return
		case err != nil:
			// the caller gave up waiting; the run goes on
			respondJSON(w, http.StatusAccepted, map[string]interface{}{
				"message": message,
				"data":    map[string]interface{}{"runId": run.ID, "status": true},
			})
			return
		}

		if !wait {
			status := http.StatusAccepted
			if req.Method == http.MethodPost {
				status = http.StatusCreated
			}
			respondJSON(w, status, map[string]interface{}{
				"message": message,
				"data":    map[string]interface{}{"runId": run.ID, "status": true},
			})
			return
		}

		res, runErr := run.Result()
		data := map[string]interface{}{
			"runId":  run.ID,
			"status": runErr == nil && (res == nil || res.Failed == 0),
		}
		if res != nil {
			data["quantity"] = len(res.Processed)
			data["records"] = res.Processed
			data["created"] = res.Created
			data["updated"] = res.Updated
			data["deleted"] = res.Deleted
			data["skipped"] = res.Skipped
			data["errors"] = res.Failed
			if len(res.Extra) > 0 {
				data["counters"] = res.Extra
			}
		}
		if runErr != nil {
			respondJSON(w, http.StatusInternalServerError, map[string]interface{}{
				"message": "Job " + job + " failed.",
				"data":    data,
			})
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"message": message,
			"data":    data,
		})
	}
}

// listRuns returns the run ledger, newest first
func (r *Router) listRuns(w http.ResponseWriter, req *http.Request) {
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	runs, err := r.opts.Runner.Recent(req.Context(), req.URL.Query().Get("job"), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read run history")
		return
	}
	if runs == nil {
		runs = []models.SyncHistory{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"quantity": len(runs),
		"runs":     runs,
	})
}
