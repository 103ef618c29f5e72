package api

import (
	"SpyCanvas/internal/interfaces"
	"SpyCanvas/internal/notify"
	"SpyCanvas/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// WSHandler 对局实时通知
type WSHandler struct {
	matches *service.MatchService
	hub     *notify.Hub
	logger  *logrus.Logger
}

// NewWSHandler 创建 WSHandler
func NewWSHandler(matches *service.MatchService, hub *notify.Hub, logger *logrus.Logger) *WSHandler {
	return &WSHandler{matches: matches, hub: hub, logger: logger}
}

// Subscribe 参与者订阅对局与个人通知，升级前先做与 GetMatch 相同的校验
// GET /ws/matches/:match_id?token=...
func (h *WSHandler) Subscribe(c *gin.Context) {
	matchID := c.Param("match_id")
	player := playerID(c)
	if _, err := h.matches.GetMatch(c.Request.Context(), player, matchID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	topics := []string{interfaces.MatchTopic(matchID), interfaces.PlayerTopic(player)}
	if err := h.hub.Serve(c.Writer, c.Request, topics); err != nil {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"match_id":  matchID,
			"player_id": player,
		}).Warn("websocket 升级失败")
	}
}

// SubscribePlayer 排队中的玩家订阅个人通知（如 match-found），无需已在对局中
// GET /ws/players/me?token=...
func (h *WSHandler) SubscribePlayer(c *gin.Context) {
	player := playerID(c)
	if err := h.hub.Serve(c.Writer, c.Request, []string{interfaces.PlayerTopic(player)}); err != nil {
		h.logger.WithError(err).WithField("player_id", player).Warn("websocket 升级失败")
	}
}
