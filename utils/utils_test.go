package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestGenerateID(t *testing.T) {
	t.Parallel()

	id := GenerateID()
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	require.NotEqual(t, id, GenerateID())

	require.Equal(t, "3f2a9c1e", ShortID("3f2a9c1e-77aa-4b3c-9d1e-123456789abc", 8))
	require.Equal(t, "ab", ShortID("a-b", 8))
}

func TestJSONError(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		status     int
		wantDetail string
	}{
		{"client_error_shows_detail", http.StatusBadRequest, "bid rejected: too low"},
		{"server_error_hides_detail", http.StatusInternalServerError, "Something went wrong!"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			msg := "Something went wrong!"
			if tc.status < http.StatusInternalServerError {
				msg = "too low"
			}
			JSONError(c, tc.status, errors.New("bid rejected: too low"), msg)

			var resp map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.Equal(t, float64(tc.status), resp["status"])
			require.Equal(t, tc.wantDetail, resp["error"])
		})
	}
}
