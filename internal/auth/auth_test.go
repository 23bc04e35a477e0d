package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensetracker/internal/apiclient"
	"expensetracker/internal/prefs"
)

func loginServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/users/login":
			if body.Email == "ana@example.com" && body.Password == "secret1" {
				_, _ = w.Write([]byte(`{"success":true,"message":"Login successful","token":"tok-1","user":{"id":7,"username":"ana","email":"ana@example.com"}}`))
				return
			}
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"success":false,"message":"Invalid email or password"}`))
		case "/users/register":
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"success":true,"message":"User registered successfully"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLoginSuccessPersistsSession(t *testing.T) {
	srv := loginServer(t)
	store := prefs.NewMemory()
	m := NewManager(apiclient.New(srv.URL), store, nil)

	res, err := m.Login(context.Background(), "ana@example.com", "secret1")
	require.NoError(t, err)
	assert.True(t, res.Success)

	assert.Equal(t, "tok-1", m.Token())
	u, ok := m.User()
	require.True(t, ok)
	assert.Equal(t, "ana", u.Username)

	tok, ok, _ := store.Get(TokenKey)
	assert.True(t, ok)
	assert.Equal(t, "tok-1", tok)
	raw, ok, _ := store.Get(UserKey)
	assert.True(t, ok)
	assert.JSONEq(t, `{"id":7,"username":"ana","email":"ana@example.com"}`, raw)
}

func TestLoginFailureLeavesStateUntouched(t *testing.T) {
	srv := loginServer(t)
	store := prefs.NewMemory()
	m := NewManager(apiclient.New(srv.URL), store, nil)

	res, err := m.Login(context.Background(), "ana@example.com", "wrong")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "Invalid email or password", res.Message)

	assert.Empty(t, m.Token())
	assert.False(t, m.IsAuthenticated())
	assert.Zero(t, store.Len())
}

func TestLoginTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	m := NewManager(apiclient.New(url), prefs.NewMemory(), nil)
	_, err := m.Login(context.Background(), "a@b.c", "x")
	assert.Error(t, err)
	assert.Empty(t, m.Token())
}

func TestRegisterIsPassthrough(t *testing.T) {
	srv := loginServer(t)
	store := prefs.NewMemory()
	m := NewManager(apiclient.New(srv.URL), store, nil)

	res, err := m.Register(context.Background(), RegisterRequest{Username: "bo", Email: "bo@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.True(t, res.Success())
	assert.Equal(t, "User registered successfully", res.Message())
	assert.False(t, m.IsAuthenticated())
	assert.Zero(t, store.Len())
}

func TestLogoutClearsEverything(t *testing.T) {
	srv := loginServer(t)
	store := prefs.NewMemory()
	m := NewManager(apiclient.New(srv.URL), store, nil)

	_, err := m.Login(context.Background(), "ana@example.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, m.Logout())
	assert.Empty(t, m.Token())
	_, ok := m.User()
	assert.False(t, ok)
	assert.Zero(t, store.Len())

	// Logging out twice is fine.
	assert.NoError(t, m.Logout())
}

type failingStore struct{ prefs.Store }

func (failingStore) Delete(...string) error { return errors.New("disk full") }

func TestLogoutClearsMemoryWhenStorageFails(t *testing.T) {
	srv := loginServer(t)
	m := NewManager(apiclient.New(srv.URL), failingStore{prefs.NewMemory()}, nil)

	_, err := m.Login(context.Background(), "ana@example.com", "secret1")
	require.NoError(t, err)

	assert.Error(t, m.Logout())
	assert.Empty(t, m.Token())
}

func TestRestore(t *testing.T) {
	tests := []struct {
		name     string
		seed     map[string]string
		wantAuth bool
	}{
		{"both keys", map[string]string{TokenKey: "tok", UserKey: `{"id":1,"username":"ana","email":"a@b.c"}`}, true},
		{"token only", map[string]string{TokenKey: "tok"}, false},
		{"user only", map[string]string{UserKey: `{"id":1}`}, false},
		{"corrupt user", map[string]string{TokenKey: "tok", UserKey: "{"}, false},
		{"empty", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := prefs.NewMemory()
			for k, v := range tt.seed {
				require.NoError(t, store.Set(k, v))
			}
			m := NewManager(apiclient.New("http://unused.invalid"), store, nil)

			require.NoError(t, m.Restore())
			assert.Equal(t, tt.wantAuth, m.IsAuthenticated())
			if tt.wantAuth {
				assert.Equal(t, "ana", m.Session().User.Username)
			}
		})
	}
}
