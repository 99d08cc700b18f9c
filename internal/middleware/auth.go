package middleware

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/terminal-bench/ballotbox/internal/models"
)

const (
	voterKey = "voter_cnp"

	// AdminTokenHeader carries the operator token for administrative routes
	AdminTokenHeader = "X-Admin-Token"
)

// Claims represents JWT claims
type Claims struct {
	CNP string `json:"cnp"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for cnp that expires after ttl
func IssueToken(secret, cnp string, ttl time.Duration) (string, error) {
	if !models.ValidCNP(cnp) {
		return "", fmt.Errorf("invalid cnp %q", cnp)
	}
	now := time.Now()
	claims := Claims{
		CNP: cnp,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   cnp,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// Auth middleware validates the bearer token and stores the voter's CNP
func Auth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		if !models.ValidCNP(claims.CNP) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid voter identity"})
			return
		}

		c.Set(voterKey, claims.CNP)
		c.Next()
	}
}

// GetVoterCNP returns the CNP stored by Auth
func GetVoterCNP(c *gin.Context) (string, bool) {
	v, exists := c.Get(voterKey)
	if !exists {
		return "", false
	}
	cnp, ok := v.(string)
	return cnp, ok && cnp != ""
}

// AdminOnly rejects requests whose X-Admin-Token does not match token.
// An empty token disables the guarded routes entirely.
func AdminOnly(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "administrative routes are disabled"})
			return
		}
		given := c.GetHeader(AdminTokenHeader)
		if subtle.ConstantTimeCompare([]byte(given), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "access denied"})
			return
		}
		c.Next()
	}
}
