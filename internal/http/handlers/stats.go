package handlers

import (
	"net/http"

	"imagelab/internal/middleware"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) Stats(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, a.Counter.Snapshot())
}

// RecordVisit counts the caller once per browser session.
func (a *App) RecordVisit(w http.ResponseWriter, r *http.Request) {
	_, created := middleware.StartSession(w, r)
	if !created {
		a.json(w, http.StatusOK, map[string]any{"counted": false, "stats": a.Counter.Snapshot()})
		return
	}
	stats, err := a.Counter.RecordVisit(r.Context())
	if err != nil {
		a.log(r).Error().Err(err).Msg("record visit")
		a.error(w, r, http.StatusInternalServerError, "internal", middleware.MsgRecordVisitFailed)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"counted": true, "stats": stats})
}
