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

func TestAccessTokenRoundTrip(t *testing.T) {
	m := NewJWTManager("secret", time.Minute)

	token, err := m.GenerateAccessToken("user-1", "user@example.com", RoleStaff)
	require.NoError(t, err)

	claims, err := m.ParseAndValidate(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "user@example.com", claims.Email)
	assert.Equal(t, RoleStaff, claims.Role)
}

func TestAccessTokenRejected(t *testing.T) {
	m := NewJWTManager("secret", time.Minute)
	token, err := m.GenerateAccessToken("user-1", "", "")
	require.NoError(t, err)

	_, err = NewJWTManager("other", time.Minute).ParseAndValidate(token)
	assert.Error(t, err, "wrong secret")

	expired, err := NewJWTManager("secret", -time.Minute).GenerateAccessToken("user-1", "", "")
	require.NoError(t, err)
	_, err = m.ParseAndValidate(expired)
	assert.Error(t, err, "expired")
}

func TestAuthRequiredSetsRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewJWTManager("secret", time.Minute)

	r := gin.New()
	r.GET("/me", AuthRequired(m), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": GetUserID(c), "staff": IsStaff(c)})
	})

	staff, err := m.GenerateAccessToken("staff-1", "staff@example.com", RoleStaff)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
		body   string
	}{
		{name: "missing header", want: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", want: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer abc", want: http.StatusUnauthorized},
		{name: "staff", header: "Bearer " + staff, want: http.StatusOK, body: `{"id":"staff-1","staff":true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
			if tt.body != "" {
				assert.JSONEq(t, tt.body, w.Body.String())
			}
		})
	}
}
