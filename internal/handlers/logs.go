package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/xelth-com/arcasync/internal/config"
	"github.com/xelth-com/arcasync/internal/jobs"
)

// getErrorLog returns the stock error log and deletes it
func (r *Router) getErrorLog(w http.ResponseWriter, req *http.Request) {
	data, err := jobs.TakeErrorLog(r.opts.Runner.LogDir())
	if errors.Is(err, jobs.ErrNoLog) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "noError"})
		return
	}
	if err != nil {
		log.Printf("❌ Reading error log: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to read error log")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "success",
		"data":   string(data),
	})
}

// getJobLog returns the latest run log of a job
func (r *Router) getJobLog(w http.ResponseWriter, req *http.Request) {
	job := mux.Vars(req)["job"]
	if !knownJob(job) {
		respondError(w, http.StatusNotFound, "unknown job")
		return
	}

	name, data, err := jobs.LatestRunLog(r.opts.Runner.LogDir(), job)
	if errors.Is(err, jobs.ErrNoLog) {
		respondError(w, http.StatusNotFound, "no log for "+job)
		return
	}
	if err != nil {
		log.Printf("❌ Reading log of %s: %v", job, err)
		respondError(w, http.StatusInternalServerError, "failed to read log")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"job":  job,
		"file": name,
		"data": string(data),
	})
}

// knownJob keeps path parameters out of the file system lookup
func knownJob(job string) bool {
	for _, name := range config.JobNames {
		if name == job {
			return true
		}
	}
	return false
}
