package edgefunc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/camwatch/backend/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixRole(t *testing.T) {
	userID := uuid.New()
	var got fixRoleRequest
	var auth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/functions/fix-user-role", r.URL.Path)
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"message":"role set to admin"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/api/v1/", time.Second)
	ctx := domain.ContextWithPrincipal(context.Background(), domain.Principal{UserID: uuid.New(), Token: "tok"})

	require.NoError(t, client.FixRole(ctx, userID, domain.RoleAdmin))
	assert.Equal(t, "Bearer tok", auth)
	assert.Equal(t, fixRoleRequest{Action: "fix", UserID: userID, Role: "admin"}, got)
}

func TestFixRoleUnsuccessful(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"success":false,"error":"permission denied"}`))
	}))
	defer srv.Close()

	err := NewClient(srv.URL, time.Second).FixRole(context.Background(), uuid.New(), domain.RoleUser)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFunctionFailed)
	assert.Contains(t, err.Error(), "permission denied")
}

func TestFixRoleSuccessFalse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":false,"error":"user not found"}`))
	}))
	defer srv.Close()

	err := NewClient(srv.URL, time.Second).FixRole(context.Background(), uuid.New(), domain.RoleUser)
	assert.ErrorIs(t, err, ErrFunctionFailed)
}

func TestFixRoleNonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, time.Second).FixRole(context.Background(), uuid.New(), domain.RoleUser)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestIsSuperadmin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rpc/is-superadmin", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("Authorization") == "Bearer root" {
			_, _ = w.Write([]byte(`{"data":true}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":false}`))
	}))
	defer srv.Close()
	client := NewClient(srv.URL, time.Second)

	ok, err := client.IsSuperadmin(context.Background(), domain.Principal{UserID: uuid.New(), Token: "root"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.IsSuperadmin(context.Background(), domain.Principal{UserID: uuid.New(), Token: "other"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewClient("http://127.0.0.1:1", time.Second).FixRole(ctx, uuid.New(), domain.RoleUser)
	assert.ErrorIs(t, err, context.Canceled)
}
