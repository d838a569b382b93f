package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func writeTestConfig(t *testing.T, path, baseURL string) {
	t.Helper()

	data := fmt.Sprintf(`api:
  base_url: %q
  scope: "chat"
  request_timeout: 5
log:
  level: "error"
  format: "text"
`, baseURL)

	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
}

// saveGlobals snapshots the command globals mutated by tests and restores
// them on cleanup.
func saveGlobals(t *testing.T) {
	t.Helper()

	oldCfg := configFile
	oldExit := overrideExitCode
	oldBaseURL := baseURLFlag
	oldScope := scopeFlag
	oldNoBrowser := noBrowser
	t.Cleanup(func() {
		configFile = oldCfg
		overrideExitCode = oldExit
		baseURLFlag = oldBaseURL
		scopeFlag = oldScope
		noBrowser = oldNoBrowser
	})
}

func TestRunCheckConfig_Valid(t *testing.T) {
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "playkit.yaml")
	writeTestConfig(t, cfgPath, "https://api.playkit.dev")

	saveGlobals(t)
	configFile = cfgPath
	overrideExitCode = -1

	if err := runCheckConfig(nil, nil); err != nil {
		t.Fatalf("runCheckConfig failed: %v", err)
	}
	if overrideExitCode != -1 {
		t.Fatalf("overrideExitCode = %d, want -1 (unset)", overrideExitCode)
	}
}

func TestRunCheckConfig_Invalid(t *testing.T) {
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "playkit.yaml")

	// base_url is not a URL
	data := `api:
  base_url: "not-a-url"
  scope: "chat"
`
	if err := os.WriteFile(cfgPath, []byte(data), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	saveGlobals(t)
	configFile = cfgPath
	overrideExitCode = -1

	if err := runCheckConfig(nil, nil); err != nil {
		t.Fatalf("runCheckConfig returned unexpected error: %v", err)
	}
	if overrideExitCode != ExitConfig {
		t.Fatalf("overrideExitCode = %d, want %d (ExitConfig)", overrideExitCode, ExitConfig)
	}
}

func TestRunVersion(t *testing.T) {
	oldVersion, oldCommit, oldBuildDate := version, commit, buildDate
	t.Cleanup(func() {
		version, commit, buildDate = oldVersion, oldCommit, oldBuildDate
	})

	version = "1.2.3"
	commit = "deadbeef"
	buildDate = "2026-02-17"

	runVersion(nil, nil)
}

// newAuthServer fakes the platform: initiation always succeeds and each
// poll is answered by the next handler in sequence.
func newAuthServer(t *testing.T, pollHandlers ...http.HandlerFunc) *httptest.Server {
	t.Helper()

	polls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/api/device-auth/initiate", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"session_id":    "sess-123",
			"auth_url":      "https://play.example.com/device?code=abc",
			"poll_interval": 1,
			"expires_in":    60,
		})
	})
	mux.HandleFunc("/api/device-auth/poll", func(w http.ResponseWriter, r *http.Request) {
		if polls >= len(pollHandlers) {
			t.Errorf("unexpected poll request #%d", polls+1)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		pollHandlers[polls](w, r)
		polls++
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRunLogin_Authorized(t *testing.T) {
	srv := newAuthServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":       "authorized",
			"access_token": "tok-xyz",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})

	saveGlobals(t)
	configFile = filepath.Join(t.TempDir(), "does-not-exist.yaml")
	overrideExitCode = -1
	baseURLFlag = srv.URL
	noBrowser = true

	if err := runLogin(nil, nil); err != nil {
		t.Fatalf("runLogin failed: %v", err)
	}
	if overrideExitCode != -1 {
		t.Fatalf("overrideExitCode = %d, want -1 (success)", overrideExitCode)
	}
}

func TestRunLogin_Denied(t *testing.T) {
	srv := newAuthServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "access_denied"})
	})

	saveGlobals(t)
	configFile = filepath.Join(t.TempDir(), "does-not-exist.yaml")
	overrideExitCode = -1
	baseURLFlag = srv.URL
	noBrowser = true

	if err := runLogin(nil, nil); err != nil {
		t.Fatalf("runLogin failed: %v", err)
	}
	if overrideExitCode != ExitDenied {
		t.Fatalf("overrideExitCode = %d, want %d (ExitDenied)", overrideExitCode, ExitDenied)
	}
}

func TestRunLogin_InitiationFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	saveGlobals(t)
	configFile = filepath.Join(t.TempDir(), "does-not-exist.yaml")
	overrideExitCode = -1
	baseURLFlag = srv.URL
	noBrowser = true

	if err := runLogin(nil, nil); err == nil {
		t.Fatal("expected runLogin to fail, got nil")
	}
}

func TestRunLogin_InvalidBaseURL(t *testing.T) {
	saveGlobals(t)
	configFile = filepath.Join(t.TempDir(), "does-not-exist.yaml")
	baseURLFlag = "not-a-url"

	if err := runLogin(nil, nil); err == nil {
		t.Fatal("expected runLogin to fail on invalid base URL, got nil")
	}
}
