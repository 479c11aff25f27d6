package httpserver

import (
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"shopapi/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const testJWTSecret = "test-secret"

func testToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func authTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", authRequired(testJWTSecret), func(c *gin.Context) {
		id := identityFrom(c)
		c.JSON(http.StatusOK, gin.H{"user_id": id.UserID, "role": id.Role})
	})
	r.GET("/admin", authRequired(testJWTSecret), adminRequired(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func doAuthed(r *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRequiredRejectsMissingToken(t *testing.T) {
	r := authTestRouter()
	if w := doAuthed(r, "/me", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestAuthRequiredRejectsBadSignature(t *testing.T) {
	r := authTestRouter()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": 1})
	signed, _ := token.SignedString([]byte("other-secret"))
	if w := doAuthed(r, "/me", signed); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestAuthRequiredRejectsExpiredToken(t *testing.T) {
	r := authTestRouter()
	token := testToken(t, jwt.MapClaims{
		"user_id": float64(1),
		"exp":     time.Now().Add(-time.Hour).Unix(),
	})
	if w := doAuthed(r, "/me", token); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestAuthRequiredAcceptsValidToken(t *testing.T) {
	r := authTestRouter()
	token := testToken(t, jwt.MapClaims{
		"user_id": float64(42),
		"role":    domain.RoleCustomer,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	w := doAuthed(r, "/me", token)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAdminRequiredRejectsCustomer(t *testing.T) {
	r := authTestRouter()
	token := testToken(t, jwt.MapClaims{
		"user_id": float64(42),
		"role":    domain.RoleCustomer,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	if w := doAuthed(r, "/admin", token); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestAdminRequiredAcceptsAdmin(t *testing.T) {
	r := authTestRouter()
	token := testToken(t, jwt.MapClaims{
		"user_id": float64(1),
		"role":    domain.RoleAdmin,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	if w := doAuthed(r, "/admin", token); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
}

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}
