package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "test-secret"
	testCNP    = "1960101123456"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func authRouter() *gin.Engine {
	r := gin.New()
	r.GET("/me", Auth(testSecret), func(c *gin.Context) {
		cnp, ok := GetVoterCNP(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, cnp)
	})
	return r
}

func doGet(r http.Handler, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth(t *testing.T) {
	r := authRouter()

	t.Run("should accept a valid token and expose the cnp", func(t *testing.T) {
		token, err := IssueToken(testSecret, testCNP, time.Hour)
		require.NoError(t, err)

		w := doGet(r, "/me", map[string]string{"Authorization": "Bearer " + token})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, testCNP, w.Body.String())
	})

	t.Run("should reject a missing header", func(t *testing.T) {
		w := doGet(r, "/me", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("should reject a header without the bearer scheme", func(t *testing.T) {
		w := doGet(r, "/me", map[string]string{"Authorization": "Token abc"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("should reject a token signed with another secret", func(t *testing.T) {
		token, err := IssueToken("other", testCNP, time.Hour)
		require.NoError(t, err)

		w := doGet(r, "/me", map[string]string{"Authorization": "Bearer " + token})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("should reject an expired token", func(t *testing.T) {
		token, err := IssueToken(testSecret, testCNP, -time.Minute)
		require.NoError(t, err)

		w := doGet(r, "/me", map[string]string{"Authorization": "Bearer " + token})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("should reject a malformed cnp claim", func(t *testing.T) {
		claims := Claims{CNP: "12345"}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)

		w := doGet(r, "/me", map[string]string{"Authorization": "Bearer " + token})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("should refuse to issue a token for a malformed cnp", func(t *testing.T) {
		_, err := IssueToken(testSecret, "abc", time.Hour)
		assert.Error(t, err)
	})
}

func TestAdminOnly(t *testing.T) {
	newRouter := func(token string) *gin.Engine {
		r := gin.New()
		r.GET("/admin", AdminOnly(token), func(c *gin.Context) { c.Status(http.StatusNoContent) })
		return r
	}

	t.Run("should pass with the matching token", func(t *testing.T) {
		w := doGet(newRouter("s3cret"), "/admin", map[string]string{AdminTokenHeader: "s3cret"})
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("should reject a wrong token", func(t *testing.T) {
		w := doGet(newRouter("s3cret"), "/admin", map[string]string{AdminTokenHeader: "nope"})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("should disable the route when no token is configured", func(t *testing.T) {
		w := doGet(newRouter(""), "/admin", map[string]string{AdminTokenHeader: ""})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestRateLimiter(t *testing.T) {
	t.Run("should allow a burst of twice the rate then refuse", func(t *testing.T) {
		now := time.Unix(1000, 0)
		rl := NewRateLimiter(2)
		rl.now = func() time.Time { return now }

		for i := 0; i < 4; i++ {
			assert.True(t, rl.Allow("a"), "request %d", i)
		}
		assert.False(t, rl.Allow("a"))
		assert.True(t, rl.Allow("b"), "buckets are per key")
	})

	t.Run("should refill over time", func(t *testing.T) {
		now := time.Unix(1000, 0)
		rl := NewRateLimiter(1)
		rl.now = func() time.Time { return now }

		assert.True(t, rl.Allow("a"))
		assert.True(t, rl.Allow("a"))
		assert.False(t, rl.Allow("a"))

		now = now.Add(time.Second)
		assert.True(t, rl.Allow("a"))
	})

	t.Run("should drop idle buckets on cleanup", func(t *testing.T) {
		now := time.Unix(1000, 0)
		rl := NewRateLimiter(1)
		rl.now = func() time.Time { return now }
		rl.Allow("a")

		now = now.Add(2 * time.Hour)
		rl.Cleanup()
		assert.Empty(t, rl.buckets)
	})

	t.Run("should answer 429 from the middleware", func(t *testing.T) {
		rl := NewRateLimiter(1)
		r := gin.New()
		r.GET("/x", rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

		codes := []int{}
		for i := 0; i < 3; i++ {
			codes = append(codes, doGet(r, "/x", nil).Code)
		}
		assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	})
}
