package blink_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fronzbot/blinkgo"
)

func loginBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()

	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode login body: %v", err)
	}

	return body
}

func TestLogin(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				t.Errorf("expected POST, got %s", r.Method)
			}

			body := loginBody(t, r)
			if body["email"] != "user@example.com" {
				t.Errorf("expected email user@example.com, got %v", body["email"])
			}
			if body["unique_id"] == "" {
				t.Error("expected a generated unique_id")
			}
			if body["reauth"] != true {
				t.Error("expected reauth true")
			}

			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, `{
				"account": {"account_id": 1234, "user_id": 5678, "client_id": 9012, "tier": "u011", "region": "us"},
				"auth": {"token": "token-abc"}
			}`)
		}))
		defer server.Close()

		auth := blink.NewAuth(
			&blink.Credentials{Username: "user@example.com", Password: "secret"},
			blink.WithLoginURL(server.URL),
		)

		if err := auth.Login(context.Background()); err != nil {
			t.Fatalf("unexpected login error: %v", err)
		}

		if !auth.Valid() {
			t.Error("expected a valid session after login")
		}
		if auth.Token() != "token-abc" {
			t.Errorf("expected token token-abc, got %q", auth.Token())
		}
		if auth.RegionID() != "u011" {
			t.Errorf("expected region u011, got %q", auth.RegionID())
		}
		if auth.AccountID() != 1234 {
			t.Errorf("expected account id 1234, got %d", auth.AccountID())
		}
		if auth.BaseURL() != "https://rest-u011.immedia-semi.com" {
			t.Errorf("unexpected base url %q", auth.BaseURL())
		}
	})

	t.Run("two factor required via 412", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusPreconditionFailed)
			fmt.Fprint(w, `{
				"account": {"account_id": 1234, "client_id": 9012, "tier": "u011"},
				"auth": {"token": "token-abc"}
			}`)
		}))
		defer server.Close()

		auth := blink.NewAuth(
			&blink.Credentials{Username: "user@example.com", Password: "secret"},
			blink.WithLoginURL(server.URL),
		)

		err := auth.Login(context.Background())
		if !errors.Is(err, blink.ErrTwoFactorRequired) {
			t.Fatalf("expected ErrTwoFactorRequired, got %v", err)
		}

		if auth.Valid() {
			t.Error("session must not be valid before verification")
		}

		// Identifiers must still be extracted so the pin verify call can be
		// addressed.
		if auth.AccountID() != 1234 || auth.ClientID() != 9012 {
			t.Errorf("expected extracted identifiers, got account=%d client=%d",
				auth.AccountID(), auth.ClientID())
		}
	})

	t.Run("two factor required via verification flag", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, `{
				"account": {"account_id": 1234, "client_id": 9012, "tier": "u011", "client_verification_required": true},
				"auth": {"token": "token-abc"}
			}`)
		}))
		defer server.Close()

		auth := blink.NewAuth(
			&blink.Credentials{Username: "user@example.com", Password: "secret"},
			blink.WithLoginURL(server.URL),
		)

		err := auth.Login(context.Background())
		if !errors.Is(err, blink.ErrTwoFactorRequired) {
			t.Fatalf("expected ErrTwoFactorRequired, got %v", err)
		}
		if auth.Valid() {
			t.Error("session must not be valid before verification")
		}
	})

	t.Run("invalid credentials", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"message": "invalid credentials"}`)
		}))
		defer server.Close()

		auth := blink.NewAuth(
			&blink.Credentials{Username: "user@example.com", Password: "wrong"},
			blink.WithLoginURL(server.URL),
		)

		err := auth.Login(context.Background())
		if !errors.Is(err, blink.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("response missing token", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, `{"account": {"tier": "u011"}}`)
		}))
		defer server.Close()

		auth := blink.NewAuth(
			&blink.Credentials{Username: "user@example.com", Password: "secret"},
			blink.WithLoginURL(server.URL),
		)

		err := auth.Login(context.Background())
		if !errors.Is(err, blink.ErrBadResponse) {
			t.Fatalf("expected ErrBadResponse, got %v", err)
		}
	})
}

func TestSendAuthKey(t *testing.T) {
	t.Parallel()

	newServer := func(t *testing.T, valid bool) *httptest.Server {
		t.Helper()

		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/v4/account/1234/client/9012/pin/verify" {
				t.Errorf("unexpected verify path %s", r.URL.Path)
			}

			var body map[string]string
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode pin body: %v", err)
			}
			if body["pin"] != "123456" {
				t.Errorf("expected pin 123456, got %q", body["pin"])
			}

			w.WriteHeader(http.StatusOK)
			fmt.Fprintf(w, `{"valid": %t, "message": "done"}`, valid)
		}))
	}

	t.Run("accepted pin validates the session", func(t *testing.T) {
		t.Parallel()

		server := newServer(t, true)
		defer server.Close()

		auth := blink.NewAuth(
			&blink.Credentials{Token: "tok", RegionID: "u011", AccountID: 1234, ClientID: 9012},
			blink.WithBaseURL(server.URL),
		)

		if err := auth.SendAuthKey(context.Background(), "123456"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !auth.Valid() {
			t.Error("expected a valid session after verification")
		}
	})

	t.Run("rejected pin", func(t *testing.T) {
		t.Parallel()

		server := newServer(t, false)
		defer server.Close()

		auth := blink.NewAuth(
			&blink.Credentials{Token: "tok", RegionID: "u011", AccountID: 1234, ClientID: 9012},
			blink.WithBaseURL(server.URL),
		)

		err := auth.SendAuthKey(context.Background(), "123456")
		if !errors.Is(err, blink.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("empty key is a no-op", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
			t.Error("no request expected for an empty key")
		}))
		defer server.Close()

		auth := blink.NewAuth(
			&blink.Credentials{Token: "tok", RegionID: "u011"},
			blink.WithBaseURL(server.URL),
		)

		if err := auth.SendAuthKey(context.Background(), ""); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestQueryReauth(t *testing.T) {
	t.Parallel()

	t.Run("expired token triggers exactly one re-login", func(t *testing.T) {
		t.Parallel()

		logins := 0
		dataCalls := 0

		mux := http.NewServeMux()

		server := httptest.NewServer(mux)
		defer server.Close()

		mux.HandleFunc("/login", func(w http.ResponseWriter, _ *http.Request) {
			logins++
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, `{
				"account": {"account_id": 1234, "client_id": 9012, "tier": "u011"},
				"auth": {"token": "token-fresh"}
			}`)
		})
		mux.HandleFunc("/data", func(w http.ResponseWriter, r *http.Request) {
			dataCalls++
			if r.Header.Get("TOKEN-AUTH") != "token-fresh" {
				w.WriteHeader(http.StatusUnauthorized)

				return
			}
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, `{"ok": true}`)
		})

		auth := blink.NewAuth(
			&blink.Credentials{
				Username: "user@example.com",
				Password: "secret",
				Token:    "token-stale",
				RegionID: "u011",
			},
			blink.WithLoginURL(server.URL+"/login"),
			blink.WithBaseURL(server.URL),
		)

		var out map[string]bool
		if err := auth.Query(context.Background(), http.MethodGet, server.URL+"/data", nil, &out); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if logins != 1 {
			t.Errorf("expected exactly 1 re-login, got %d", logins)
		}
		if dataCalls != 2 {
			t.Errorf("expected 2 data calls (original plus replay), got %d", dataCalls)
		}
		if !out["ok"] {
			t.Error("expected decoded response from the replayed request")
		}
	})

	t.Run("persistent 401 after re-login", func(t *testing.T) {
		t.Parallel()

		logins := 0

		mux := http.NewServeMux()

		server := httptest.NewServer(mux)
		defer server.Close()

		mux.HandleFunc("/login", func(w http.ResponseWriter, _ *http.Request) {
			logins++
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, `{
				"account": {"account_id": 1234, "client_id": 9012, "tier": "u011"},
				"auth": {"token": "token-fresh"}
			}`)
		})
		mux.HandleFunc("/data", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})

		auth := blink.NewAuth(
			&blink.Credentials{
				Username: "user@example.com",
				Password: "secret",
				Token:    "token-stale",
				RegionID: "u011",
			},
			blink.WithLoginURL(server.URL+"/login"),
			blink.WithBaseURL(server.URL),
		)

		err := auth.Query(context.Background(), http.MethodGet, server.URL+"/data", nil, nil)
		if !errors.Is(err, blink.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
		if logins != 1 {
			t.Errorf("expected exactly 1 re-login, got %d", logins)
		}
	})
}

func TestQuery(t *testing.T) {
	t.Parallel()

	t.Run("sends auth headers", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("TOKEN-AUTH") != "tok" {
				t.Errorf("expected TOKEN-AUTH header, got %q", r.Header.Get("TOKEN-AUTH"))
			}
			if r.Header.Get("Authorization") != "Bearer tok" {
				t.Errorf("expected bearer header, got %q", r.Header.Get("Authorization"))
			}
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, `{}`)
		}))
		defer server.Close()

		auth := blink.NewAuth(
			&blink.Credentials{Token: "tok", RegionID: "u011"},
			blink.WithBaseURL(server.URL),
		)

		if err := auth.Query(context.Background(), http.MethodGet, server.URL+"/x", nil, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("malformed json yields ErrBadResponse", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, `{"broken`)
		}))
		defer server.Close()

		auth := blink.NewAuth(
			&blink.Credentials{Token: "tok", RegionID: "u011"},
			blink.WithBaseURL(server.URL),
		)

		var out map[string]any

		err := auth.Query(context.Background(), http.MethodGet, server.URL+"/x", nil, &out)
		if !errors.Is(err, blink.ErrBadResponse) {
			t.Fatalf("expected ErrBadResponse, got %v", err)
		}
	})
}
