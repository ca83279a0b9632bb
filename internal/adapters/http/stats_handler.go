package http

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/taskmaster/client/internal/adapters/mockapi"
	"github.com/taskmaster/client/internal/domain/entities"
	"github.com/taskmaster/client/internal/infrastructure/logger"
)

// StatsHandler serves GET /statistics
type StatsHandler struct {
	store   *mockapi.Store
	respond Responder
	logger  *logger.Logger
	now     func() time.Time
}

// NewStatsHandler creates a new statistics handler
func NewStatsHandler(store *mockapi.Store, respond Responder, logger *logger.Logger) *StatsHandler {
	return &StatsHandler{
		store:   store,
		respond: respond,
		logger:  logger,
		now:     time.Now,
	}
}

func (h *StatsHandler) GetStatistics(c echo.Context) error {
	query := entities.StatsQuery{
		Period:   entities.StatsPeriod(c.QueryParam("period")),
		FromDate: c.QueryParam("from_date"),
		ToDate:   c.QueryParam("to_date"),
	}
	if err := c.Validate(&query); err != nil {
		return ValidationFailed(err)
	}

	stats := mockapi.ComputeStats(h.store.UserTasks(userID(c)), query, h.now())
	return h.respond.Send(c, http.StatusOK, stats, "Statistics retrieved successfully")
}
