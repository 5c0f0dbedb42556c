package handlers

import (
	"net/http"
	"time"
)

var startedAt = time.Now()

func (a *App) Health(w http.ResponseWriter, _ *http.Request) {
	a.json(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(startedAt).Round(time.Second).String(),
	})
}
