package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mozo-cocina/internal/domain"
	"mozo-cocina/internal/logger"
)

// writeProblem maps a domain error kind to an HTTP status. Persistence
// details never leave the process; the caller gets the stable kind only.
func writeProblem(c *gin.Context, lg *logger.Logger, err error) {
	kind := domain.KindOf(err)
	status := http.StatusInternalServerError
	message := err.Error()

	switch kind {
	case domain.KindValidation:
		status = http.StatusBadRequest
	case domain.KindNotFound:
		status = http.StatusNotFound
	case domain.KindConflict:
		status = http.StatusConflict
	case domain.KindPersistence:
		message = "internal storage failure"
		if lg != nil {
			lg.Error("persistence_error", err, map[string]any{"path": c.FullPath()})
		}
	}
	c.JSON(status, gin.H{"error": string(kind), "message": message})
}
