package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"safeskin/internal/domain"
)

func newFakeProvider(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("apikey"); got != "auth-key" {
			t.Fatalf("apikey header = %q", got)
		}
		switch r.URL.Path {
		case "/v1/signup":
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			json.NewEncoder(w).Encode(map[string]string{
				"uid": "new-uid", "email": body["email"], "id_token": "tok-signup",
			})
		case "/v1/signin":
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			if body["password"] != "correct horse" {
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]string{"code": "invalid_credentials", "message": "wrong password"},
				})
				return
			}
			json.NewEncoder(w).Encode(map[string]string{
				"uid": "u1", "email": body["email"], "id_token": "tok-signin",
			})
		case "/v1/signin/idp":
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]string{"code": "popup_closed_by_user", "message": "user closed the popup"},
			})
		case "/v1/signout":
			w.WriteHeader(http.StatusOK)
		case "/v1/user":
			if r.Header.Get("Authorization") != "Bearer tok-signin" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			json.NewEncoder(w).Encode(map[string]string{
				"uid": "u1", "email": "a@b.c",
			})
		default:
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func credPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "session.json")
}

func TestSignInPersistsAndNotifies(t *testing.T) {
	provider := newFakeProvider(t)
	path := credPath(t)
	client := NewClient(provider.URL, "auth-key", path)

	var notified []*domain.User
	unsub := client.OnAuthStateChanged(func(u *domain.User) {
		notified = append(notified, u)
	})
	defer unsub()

	user, err := client.SignIn(context.Background(), "a@b.c", "correct horse")
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if user.UID != "u1" || user.Email != "a@b.c" {
		t.Fatalf("user = %+v", user)
	}
	if len(notified) != 1 || notified[0] == nil || notified[0].UID != "u1" {
		t.Fatalf("notifications = %v", notified)
	}
	if client.CurrentUser() == nil {
		t.Fatal("current user not set")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("credentials not persisted: %v", err)
	}
}

func TestSignInWrongPassword(t *testing.T) {
	provider := newFakeProvider(t)
	client := NewClient(provider.URL, "auth-key", credPath(t))

	_, err := client.SignIn(context.Background(), "a@b.c", "wrong")
	if err != ErrInvalidCredentials {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
	if client.CurrentUser() != nil {
		t.Fatal("failed sign-in must not establish a session")
	}
}

func TestSignUp(t *testing.T) {
	provider := newFakeProvider(t)
	client := NewClient(provider.URL, "auth-key", credPath(t))

	user, err := client.SignUp(context.Background(), "new@b.c", "pw")
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if user.UID != "new-uid" {
		t.Fatalf("uid = %q", user.UID)
	}
}

func TestCancelledFederatedSignInIsBenign(t *testing.T) {
	provider := newFakeProvider(t)
	client := NewClient(provider.URL, "auth-key", credPath(t))

	var notifications int
	unsub := client.OnAuthStateChanged(func(*domain.User) { notifications++ })
	defer unsub()

	user, err := client.SignInWithProvider(context.Background(), "google.com")
	if err != nil {
		t.Fatalf("cancelled popup must not be an error, got: %v", err)
	}
	if user != nil {
		t.Fatalf("cancelled popup must yield no user, got %+v", user)
	}
	if notifications != 0 {
		t.Fatal("cancelled popup must not push an auth-state change")
	}
}

func TestSignOutClearsSessionAndCredentials(t *testing.T) {
	provider := newFakeProvider(t)
	path := credPath(t)
	client := NewClient(provider.URL, "auth-key", path)

	if _, err := client.SignIn(context.Background(), "a@b.c", "correct horse"); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}

	var last *domain.User = &domain.User{UID: "sentinel"}
	unsub := client.OnAuthStateChanged(func(u *domain.User) { last = u })
	defer unsub()

	if err := client.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}
	if client.CurrentUser() != nil {
		t.Fatal("session not cleared")
	}
	if last != nil {
		t.Fatal("sign-out must notify with nil user")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("credentials file not removed")
	}
}

func TestRestoreValidSession(t *testing.T) {
	provider := newFakeProvider(t)
	path := credPath(t)

	signing := NewClient(provider.URL, "auth-key", path)
	if _, err := signing.SignIn(context.Background(), "a@b.c", "correct horse"); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}

	// Fresh client, same credentials file: a new CLI invocation.
	client := NewClient(provider.URL, "auth-key", path)
	var last *domain.User
	unsub := client.OnAuthStateChanged(func(u *domain.User) { last = u })
	defer unsub()

	if err := client.Restore(context.Background()); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if last == nil || last.UID != "u1" {
		t.Fatalf("restored user = %+v", last)
	}
}

func TestRestoreRejectedTokenClearsCredentials(t *testing.T) {
	provider := newFakeProvider(t)
	path := credPath(t)

	creds := `{"id_token":"stale-token","user":{"uid":"u1","email":"a@b.c"}}`
	if err := os.WriteFile(path, []byte(creds), 0600); err != nil {
		t.Fatalf("write creds: %v", err)
	}

	client := NewClient(provider.URL, "auth-key", path)
	notified := false
	var last *domain.User = &domain.User{UID: "sentinel"}
	unsub := client.OnAuthStateChanged(func(u *domain.User) { notified = true; last = u })
	defer unsub()

	if err := client.Restore(context.Background()); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if !notified || last != nil {
		t.Fatal("rejected restore must notify signed-out state")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("stale credentials not removed")
	}
}

func TestRestoreWithoutCredentials(t *testing.T) {
	provider := newFakeProvider(t)
	client := NewClient(provider.URL, "auth-key", credPath(t))

	var last *domain.User = &domain.User{UID: "sentinel"}
	unsub := client.OnAuthStateChanged(func(u *domain.User) { last = u })
	defer unsub()

	if err := client.Restore(context.Background()); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if last != nil {
		t.Fatal("missing credentials must notify nil user")
	}
}
