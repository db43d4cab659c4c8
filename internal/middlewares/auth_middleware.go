package middlewares

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// bearerToken returns the access_token cookie, falling back to an
// Authorization: Bearer header.
func bearerToken(c *gin.Context) string {
	if tok, err := c.Cookie("access_token"); err == nil && tok != "" {
		return tok
	}
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		accessToken := bearerToken(c)
		if accessToken == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing access token"})
			c.Abort()
			return
		}

		token, err := jwt.Parse(accessToken, func(token *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		var userID float64
		switch v := claims["user_id"].(type) {
		case float64:
			userID = v
		case string:
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid user ID"})
				c.Abort()
				return
			}
			userID = f
		default:
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid user ID"})
			c.Abort()
			return
		}

		c.Set("userID", userID)
		c.Next()
	}
}
