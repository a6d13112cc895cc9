package handlers

import (
	"log"
	"net/http"

	"github.com/xelth-com/arcasync/internal/snapshot"
)

// getCategories returns the ERP category tree without touching the store
func (r *Router) getCategories(w http.ResponseWriter, req *http.Request) {
	cats, err := r.opts.Catalog.Categories(req.Context())
	if err != nil {
		log.Printf("❌ Reading categories: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to read categories")
		return
	}
	if cats == nil {
		cats = []snapshot.Category{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"quantity":   len(cats),
		"categories": cats,
	})
}
