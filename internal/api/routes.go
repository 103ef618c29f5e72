package api

import (
	"SpyCanvas/internal/notify"
	"SpyCanvas/internal/repository"
	"SpyCanvas/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Deps 注册路由所需的服务
type Deps struct {
	Store       *repository.Store
	Matchmaking *service.MatchmakingService
	Matches     *service.MatchService
	Players     *service.PlayerService
	Hub         *notify.Hub
	JWTSecret   string
	CronSecret  string
	Logger      *logrus.Logger
}

// RegisterRoutes 注册全部 HTTP 与 websocket 路由
func RegisterRoutes(r *gin.Engine, d Deps) {
	auth := AuthMiddleware(d.JWTSecret, d.Logger)

	r.GET("/api/health", NewHealthHandler(d.Store, d.Logger).Health)
	r.POST("/api/cron/matchmaker", NewCronHandler(d.Matchmaking, d.CronSecret, d.Logger).RunMatchmaker)

	authed := r.Group("/", auth)

	mm := NewMatchmakingHandler(d.Matchmaking, d.Logger)
	authed.POST("/api/matchmaking/queue", mm.Enqueue)
	authed.POST("/api/matchmaking/leave", mm.Leave)
	authed.GET("/api/matchmaking/status", mm.Status)

	gh := NewGameHandler(d.Matches, d.Logger)
	authed.GET("/api/match/:match_id", gh.GetMatch)
	authed.GET("/api/match/:match_id/events", gh.Events)
	authed.POST("/api/game/ready", gh.Ready)
	authed.POST("/api/game/proposals", gh.Propose)
	authed.POST("/api/game/vote", gh.Vote)
	authed.POST("/api/game/guess", gh.Guess)
	authed.POST("/api/game/spy-guess", gh.SpyGuess)
	authed.POST("/api/game/leave", gh.Leave)

	authed.GET("/api/players/me", NewPlayerHandler(d.Players, d.Logger).Me)

	if d.Hub != nil {
		ws := NewWSHandler(d.Matches, d.Hub, d.Logger)
		authed.GET("/ws/matches/:match_id", ws.Subscribe)
		authed.GET("/ws/players/me", ws.SubscribePlayer)
	}
}
