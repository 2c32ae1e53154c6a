package session

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/playforge/gamehost/internal/v1/auth"
)

func helperContext(target string, headers map[string]string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range headers {
		c.Request.Header.Set(k, v)
	}
	return c
}

func TestExtractToken_FromQuery(t *testing.T) {
	c := helperContext("/ws?token=abc", nil)
	assert.Equal(t, "abc", extractToken(c))
}

func TestExtractToken_FromProtocolHeader(t *testing.T) {
	c := helperContext("/ws", map[string]string{
		"Sec-WebSocket-Protocol": "access_token, eyJtoken",
	})
	assert.Equal(t, "eyJtoken", extractToken(c))
}

func TestExtractToken_Missing(t *testing.T) {
	c := helperContext("/ws", nil)
	assert.Equal(t, "", extractToken(c))
}

func TestResolveDisplayName(t *testing.T) {
	claims := &auth.CustomClaims{Name: "Ada Lovelace", Email: "ada@example.com"}
	claims.Subject = "user-1"

	assert.Equal(t, "Queen", resolveDisplayName("Queen", claims))
	assert.Equal(t, "Ada Lovelace", resolveDisplayName("", claims))

	claims.Name = ""
	assert.Equal(t, "ada", resolveDisplayName("", claims))

	claims.Email = ""
	assert.Equal(t, "user-1", resolveDisplayName("", claims))
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"http://localhost:3000", "https://game.example"})

	makeReq := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	assert.True(t, check(makeReq("")), "non-browser clients are allowed")
	assert.True(t, check(makeReq("http://localhost:3000")))
	assert.True(t, check(makeReq("https://game.example")))
	assert.False(t, check(makeReq("https://evil.example")))
	assert.False(t, check(makeReq("http://game.example")), "scheme must match")
	assert.False(t, check(makeReq("://bad")))
}
