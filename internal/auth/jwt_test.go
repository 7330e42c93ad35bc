package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKey    = "test-signing-key"
	testIssuer = "classattend-test"
)

func TestIssueAndParse(t *testing.T) {
	token, exp, err := Issue("teacher-1", RoleTeacher, testIssuer, testKey, time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := Parse(token, testKey, testIssuer)
	require.NoError(t, err)
	assert.Equal(t, "teacher-1", claims.Subject)
	assert.True(t, claims.Is(RoleTeacher))
	assert.False(t, claims.Is(RoleStudent))
}

func TestParseRejectsWrongKey(t *testing.T) {
	token, _, err := Issue("teacher-1", RoleTeacher, testIssuer, testKey, time.Hour)
	require.NoError(t, err)

	_, err = Parse(token, "other-key", testIssuer)
	assert.Error(t, err)
}

func TestParseRejectsExpired(t *testing.T) {
	token, _, err := Issue("teacher-1", RoleTeacher, testIssuer, testKey, -time.Minute)
	require.NoError(t, err)

	_, err = Parse(token, testKey, testIssuer)
	assert.Error(t, err)
}

func TestParseRejectsIssuerMismatch(t *testing.T) {
	token, _, err := Issue("teacher-1", RoleTeacher, "someone-else", testKey, time.Hour)
	require.NoError(t, err)

	_, err = Parse(token, testKey, testIssuer)
	assert.Error(t, err)
}

func guardedRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	group := r.Group("/", Authenticate(testKey, testIssuer))
	group.GET("/teacher-only", RequireRole(RoleTeacher), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"sub": Principal(c).Subject})
	})
	return r
}

func TestMiddlewareRejectsMissingToken(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/teacher-only", nil)
	guardedRouter().ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMiddlewareRejectsWrongRole(t *testing.T) {
	token, _, err := Issue("student-1", RoleStudent, testIssuer, testKey, time.Hour)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/teacher-only", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	guardedRouter().ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestMiddlewareAcceptsMatchingRole(t *testing.T) {
	token, _, err := Issue("teacher-1", RoleTeacher, testIssuer, testKey, time.Hour)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/teacher-only", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	guardedRouter().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "teacher-1")
}
