package api

import (
	"net/http"

	"SpyCanvas/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// GameHandler 对局查询与对局内动作
type GameHandler struct {
	matches *service.MatchService
	logger  *logrus.Logger
}

// NewGameHandler 创建 GameHandler
func NewGameHandler(matches *service.MatchService, logger *logrus.Logger) *GameHandler {
	return &GameHandler{matches: matches, logger: logger}
}

type matchRequest struct {
	MatchID string `json:"match_id" binding:"required"`
}

type textRequest struct {
	MatchID string `json:"match_id" binding:"required"`
	Text    string `json:"text"`
}

// guessRequest round 可选，为客户端看到的回合序号
type guessRequest struct {
	MatchID string `json:"match_id" binding:"required"`
	Text    string `json:"text"`
	Round   int    `json:"round"`
}

type voteRequest struct {
	MatchID    string `json:"match_id" binding:"required"`
	ProposalID string `json:"proposal_id" binding:"required"`
}

// GetMatch 按请求者角色脱敏的对局视图
// GET /api/match/:match_id
func (h *GameHandler) GetMatch(c *gin.Context) {
	view, err := h.matches.GetMatch(c.Request.Context(), playerID(c), c.Param("match_id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Events 对局事件流水
// GET /api/match/:match_id/events
func (h *GameHandler) Events(c *gin.Context) {
	events, err := h.matches.History(c.Request.Context(), playerID(c), c.Param("match_id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// Ready POST /api/game/ready
func (h *GameHandler) Ready(c *gin.Context) {
	var req matchRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}
	view, err := h.matches.MarkReady(c.Request.Context(), playerID(c), req.MatchID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Propose POST /api/game/proposals
func (h *GameHandler) Propose(c *gin.Context) {
	var req textRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}
	view, err := h.matches.ProposeKey(c.Request.Context(), playerID(c), req.MatchID, req.Text)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// Vote POST /api/game/vote
func (h *GameHandler) Vote(c *gin.Context) {
	var req voteRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}
	view, err := h.matches.Vote(c.Request.Context(), playerID(c), req.MatchID, req.ProposalID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Guess POST /api/game/guess
func (h *GameHandler) Guess(c *gin.Context) {
	var req guessRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}
	res, err := h.matches.Guess(c.Request.Context(), playerID(c), req.MatchID, req.Text, req.Round)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// SpyGuess POST /api/game/spy-guess
func (h *GameHandler) SpyGuess(c *gin.Context) {
	var req guessRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}
	res, err := h.matches.SpySignal(c.Request.Context(), playerID(c), req.MatchID, req.Text, req.Round)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Leave POST /api/game/leave
func (h *GameHandler) Leave(c *gin.Context) {
	var req matchRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}
	res, err := h.matches.LeaveMatch(c.Request.Context(), playerID(c), req.MatchID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
