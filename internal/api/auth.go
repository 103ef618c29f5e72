package api

import (
	"strings"

	"SpyCanvas/internal/game"

	"github.com/form3tech-oss/jwt-go"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	ctxPlayerID = "player_id"
	ctxUsername = "username"
)

// AuthMiddleware 校验外部身份服务签发的 HS256 令牌，sub 为玩家 ID。
// websocket 握手无法带请求头，允许用 ?token= 传递。
func AuthMiddleware(secret string, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			respondError(c, logger, game.Unauthorized("missing bearer token"))
			return
		}
		token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, game.Unauthorized("unexpected signing method %v", token.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			respondError(c, logger, game.Unauthorized("invalid or expired token"))
			return
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			respondError(c, logger, game.Unauthorized("invalid token claims"))
			return
		}
		sub, _ := claims["sub"].(string)
		if strings.TrimSpace(sub) == "" {
			respondError(c, logger, game.Unauthorized("token has no subject"))
			return
		}
		username, _ := claims["username"].(string)
		c.Set(ctxPlayerID, sub)
		c.Set(ctxUsername, username)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return c.Query("token")
}

func playerID(c *gin.Context) string {
	return c.GetString(ctxPlayerID)
}

func username(c *gin.Context) string {
	return c.GetString(ctxUsername)
}
