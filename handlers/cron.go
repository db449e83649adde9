package handlers

import (
	"context"
	"net/http"

	"rentalspot/models"
	"rentalspot/utils"

	"github.com/gin-gonic/gin"
)

// HoldSweeper expires lapsed holds.
type HoldSweeper interface {
	Run(ctx context.Context) (*models.SweepReport, error)
}

// CronHandler exposes scheduler-triggered jobs over HTTP.
type CronHandler struct {
	Sweeper HoldSweeper
}

func NewCronHandler(s HoldSweeper) *CronHandler {
	return &CronHandler{Sweeper: s}
}

// ReleaseHolds handles POST /api/cron/release-holds and returns the sweep report.
func (h *CronHandler) ReleaseHolds(c *gin.Context) {
	report, err := h.Sweeper.Run(c.Request.Context())
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
