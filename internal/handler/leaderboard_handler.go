package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/veriq-app/veriq-go-api/internal/service"
	"github.com/veriq-app/veriq-go-api/internal/utils"
)

// LeaderboardHandler serves the global expert ranking.
type LeaderboardHandler struct {
	rankings service.RankingService
	logger   zerolog.Logger
}

// NewLeaderboardHandler constructs the handler.
func NewLeaderboardHandler(rankings service.RankingService, logger zerolog.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{
		rankings: rankings,
		logger:   logger.With().Str("component", "leaderboard_handler").Logger(),
	}
}

// Register attaches leaderboard endpoints to the router group.
func (h *LeaderboardHandler) Register(router fiber.Router) {
	router.Get("", h.list)
}

func (h *LeaderboardHandler) list(c *fiber.Ctx) error {
	entries, err := h.rankings.Leaderboard(c.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("leaderboard request failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}

	return utils.SendSuccess(c, "leaderboard retrieved", entries)
}
