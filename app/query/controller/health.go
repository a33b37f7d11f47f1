package controller

import (
	"net/http"
)

func (c *Controller) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := c.App.Store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "errored", "error": "database connection error"})
		return
	}

	redisStatus := "disabled"
	if c.App.RedisClient != nil {
		redisStatus = "ok"
		if err := c.App.RedisClient.Health(ctx); err != nil {
			redisStatus = "errored"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": "ok", "redis": redisStatus})
}
