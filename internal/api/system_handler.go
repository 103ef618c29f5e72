package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"SpyCanvas/internal/game"
	"SpyCanvas/internal/repository"
	"SpyCanvas/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// PlayerHandler 玩家资料
type PlayerHandler struct {
	players *service.PlayerService
	logger  *logrus.Logger
}

// NewPlayerHandler 创建 PlayerHandler
func NewPlayerHandler(players *service.PlayerService, logger *logrus.Logger) *PlayerHandler {
	return &PlayerHandler{players: players, logger: logger}
}

// Me GET /api/players/me
func (h *PlayerHandler) Me(c *gin.Context) {
	p, err := h.players.Profile(c.Request.Context(), playerID(c), username(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// CronHandler 供外部定时器触发的匹配调度
type CronHandler struct {
	matchmaking *service.MatchmakingService
	secret      string
	logger      *logrus.Logger
}

// NewCronHandler 创建 CronHandler，secret 为空时拒绝所有请求
func NewCronHandler(matchmaking *service.MatchmakingService, secret string, logger *logrus.Logger) *CronHandler {
	return &CronHandler{matchmaking: matchmaking, secret: secret, logger: logger}
}

// RunMatchmaker POST /api/cron/matchmaker
func (h *CronHandler) RunMatchmaker(c *gin.Context) {
	got := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if h.secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
		respondError(c, h.logger, game.Unauthorized("invalid cron secret"))
		return
	}
	report, err := h.matchmaking.RunTick(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// HealthHandler 存活检查
type HealthHandler struct {
	store  *repository.Store
	logger *logrus.Logger
}

// NewHealthHandler 创建 HealthHandler
func NewHealthHandler(store *repository.Store, logger *logrus.Logger) *HealthHandler {
	return &HealthHandler{store: store, logger: logger}
}

// Health GET /api/health
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		// 未鉴权接口，不回传内部错误
		h.logger.WithError(err).Error("健康检查失败")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
