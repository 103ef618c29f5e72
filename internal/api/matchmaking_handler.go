package api

import (
	"net/http"

	"SpyCanvas/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// MatchmakingHandler 排队相关接口
type MatchmakingHandler struct {
	matchmaking *service.MatchmakingService
	logger      *logrus.Logger
}

// NewMatchmakingHandler 创建 MatchmakingHandler
func NewMatchmakingHandler(matchmaking *service.MatchmakingService, logger *logrus.Logger) *MatchmakingHandler {
	return &MatchmakingHandler{matchmaking: matchmaking, logger: logger}
}

// Enqueue 加入匹配队列，凑满 4 人时直接返回 match_id
// POST /api/matchmaking/queue
func (h *MatchmakingHandler) Enqueue(c *gin.Context) {
	status, err := h.matchmaking.Enqueue(c.Request.Context(), playerID(c), username(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// Leave 退出匹配队列
// POST /api/matchmaking/leave
func (h *MatchmakingHandler) Leave(c *gin.Context) {
	removed, err := h.matchmaking.LeaveQueue(c.Request.Context(), playerID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// Status 排队状态或当前对局
// GET /api/matchmaking/status
func (h *MatchmakingHandler) Status(c *gin.Context) {
	status, err := h.matchmaking.Status(c.Request.Context(), playerID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, status)
}
