package api

import (
	"errors"
	"net/http"

	"SpyCanvas/internal/game"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

var kindStatus = map[game.Kind]int{
	game.KindUnauthorized: http.StatusUnauthorized,
	game.KindInvalid:      http.StatusBadRequest,
	game.KindNotFound:     http.StatusNotFound,
	game.KindForbidden:    http.StatusForbidden,
	game.KindInvalidPhase: http.StatusBadRequest,
	game.KindConflict:     http.StatusConflict,
	game.KindGone:         http.StatusGone,
}

// respondError 业务错误按分类返回，其余一律 500 且不暴露内部信息
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	kind := game.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		logger.WithError(err).WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).Error("请求处理失败")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "internal error, please retry",
			"code":      game.KindInternal,
			"retryable": true,
		})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": messageOf(err), "code": kind})
}

func messageOf(err error) string {
	var e *game.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// bindJSON 解析请求体，失败时直接写 400
func bindJSON(c *gin.Context, logger *logrus.Logger, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		respondError(c, logger, game.Invalid("invalid request body: %v", err))
		return false
	}
	return true
}
