package blink_test

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/fronzbot/blinkgo"
)

// fakeBackend serves a small account: network 1 ("Home") with a standard
// camera behind a sync module, and a standalone mini on its own network 2.
type fakeBackend struct {
	mu           sync.Mutex
	armed        bool
	armPolls     int
	thumbFetches int
}

func (f *fakeBackend) server(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()

	mux.HandleFunc("/networks", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{
			"summary": {"1": {"name": "Home", "onboarded": true}},
			"networks": [{"id": 1, "name": "Home", "armed": false, "onboarded": true}]
		}`)
	})

	mux.HandleFunc("/api/v3/accounts/1234/homescreen", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{
			"networks": [],
			"sync_modules": [],
			"cameras": [],
			"owls": [{"id": 20, "network_id": 2, "name": "Garage Mini", "serial": "M1", "enabled": true, "onboarded": true, "status": "done", "type": "owl"}],
			"doorbells": []
		}`)
	})

	mux.HandleFunc("/api/v1/camera/usage", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{
			"networks": [{"network_id": 1, "name": "Home", "cameras": [{"id": 10, "name": "Front Door"}]}]
		}`)
	})

	mux.HandleFunc("/network/1/syncmodules", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{
			"syncmodule": {"id": 100, "network_id": 1, "name": "Sync Hub", "serial": "S1", "status": "online"}
		}`)
	})

	mux.HandleFunc("/network/1", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		armed := f.armed
		f.mu.Unlock()
		fmt.Fprintf(w, `{"network": {"id": 1, "name": "Home", "armed": %t, "onboarded": true}}`, armed)
	})

	mux.HandleFunc("/events/network/1", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"event": []}`)
	})

	mux.HandleFunc("/api/v1/accounts/1234/media/changed", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"limit": 25, "media": []}`)
	})

	mux.HandleFunc("/network/1/camera/10/config", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{
			"camera": [{
				"id": 10, "network_id": 1, "name": "Front Door", "serial": "C1",
				"enabled": true, "battery_state": "ok", "battery_voltage": 162,
				"temperature": 68, "wifi_strength": 3,
				"thumbnail": "/media/thumb/front", "type": "catalina"
			}]
		}`)
	})

	mux.HandleFunc("/network/1/camera/10/signals", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"lfr": 5, "wifi": 4, "temp": 67.5, "battery": 3}`)
	})

	mux.HandleFunc("/media/thumb/front.jpg", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		f.thumbFetches++
		f.mu.Unlock()
		fmt.Fprint(w, "front-door-jpeg")
	})

	mux.HandleFunc("/api/v1/accounts/1234/networks/2/owls/20/config", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{
			"camera": [{
				"id": 20, "network_id": 2, "name": "Garage Mini", "serial": "M1",
				"enabled": true, "battery": "ok", "temperature": 70,
				"thumbnail": "/media/thumb/garage", "type": "owl"
			}]
		}`)
	})

	mux.HandleFunc("/media/thumb/garage.jpg", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "garage-jpeg")
	})

	mux.HandleFunc("/api/v1/accounts/1234/networks/1/state/arm", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		f.armed = true
		f.mu.Unlock()
		fmt.Fprint(w, `{"id": 77, "network_id": 1}`)
	})

	mux.HandleFunc("/api/v1/accounts/1234/networks/1/state/disarm", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		f.armed = false
		f.mu.Unlock()
		fmt.Fprint(w, `{"id": 78, "network_id": 1}`)
	})

	mux.HandleFunc("/network/1/command/", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		f.armPolls++
		pending := f.armPolls == 1
		f.mu.Unlock()

		fmt.Fprintf(w, `{"complete": %t, "status": 0}`, !pending)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return server
}

func startTestBlink(t *testing.T, serverURL string) *blink.Blink {
	t.Helper()

	b, err := blink.New(blink.Config{
		Credentials: &blink.Credentials{
			Token:     "test-token",
			RegionID:  "test",
			AccountID: 1234,
			ClientID:  9012,
		},
		BaseURL:      serverURL,
		LoginURL:     serverURL + "/api/v5/account/login",
		PollInterval: time.Millisecond,
		PollAttempts: 3,
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("failed to start client: %v", err)
	}

	return b
}

func TestStartDiscovery(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{}
	server := backend.server(t)

	b := startTestBlink(t, server.URL)

	if !b.Available() {
		t.Error("expected the client to be available after start")
	}

	module, ok := b.SyncModuleByName("sync hub")
	if !ok {
		t.Fatal("expected sync module Sync Hub to be discovered")
	}
	if module.SyncID != 100 {
		t.Errorf("expected sync id 100, got %d", module.SyncID)
	}
	if !module.Online() {
		t.Error("expected the sync module to be online")
	}

	camera, ok := b.Camera("Front Door")
	if !ok {
		t.Fatal("expected camera Front Door to be discovered")
	}
	if camera.ID != 10 || camera.NetworkID != 1 {
		t.Errorf("unexpected camera identity: id=%d network=%d", camera.ID, camera.NetworkID)
	}
	if camera.Serial != "C1" {
		t.Errorf("expected serial C1, got %q", camera.Serial)
	}
	if camera.TemperatureCalibrated != 67.5 {
		t.Errorf("expected calibrated temperature from signals, got %v", camera.TemperatureCalibrated)
	}
	if !bytes.Equal(camera.Image(), []byte("front-door-jpeg")) {
		t.Errorf("unexpected cached thumbnail %q", camera.Image())
	}

	// The standalone mini gets its own virtual module.
	mini, ok := b.Camera("Garage Mini")
	if !ok {
		t.Fatal("expected standalone mini to be discovered")
	}
	if mini.Kind != blink.KindMini {
		t.Errorf("expected kind %q, got %q", blink.KindMini, mini.Kind)
	}

	miniModule, ok := b.SyncModuleByName("Garage Mini")
	if !ok {
		t.Fatal("expected a virtual module for the standalone mini")
	}
	if !miniModule.Virtual {
		t.Error("expected the mini's module to be virtual")
	}
}

func TestOwlOnKnownNetworkJoinsSyncModule(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()

	mux.HandleFunc("/networks", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"summary": {"1": {"name": "Home", "onboarded": true}}}`)
	})

	// The mini sits on network 1, the same network as the sync module.
	mux.HandleFunc("/api/v3/accounts/1234/homescreen", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{
			"owls": [{"id": 21, "network_id": 1, "name": "Patio Mini", "serial": "M2", "enabled": true, "onboarded": true, "status": "done", "type": "owl"}],
			"doorbells": []
		}`)
	})

	mux.HandleFunc("/api/v1/camera/usage", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{
			"networks": [{"network_id": 1, "name": "Home", "cameras": [{"id": 10, "name": "Front Door"}]}]
		}`)
	})

	mux.HandleFunc("/network/1/syncmodules", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"syncmodule": {"id": 100, "network_id": 1, "name": "Sync Hub", "serial": "S1", "status": "online"}}`)
	})

	mux.HandleFunc("/network/1", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"network": {"id": 1, "name": "Home", "armed": false, "onboarded": true}}`)
	})

	mux.HandleFunc("/api/v1/accounts/1234/media/changed", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"limit": 25, "media": []}`)
	})

	mux.HandleFunc("/network/1/camera/10/config", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{
			"camera": [{"id": 10, "network_id": 1, "name": "Front Door", "enabled": true, "thumbnail": "/media/thumb/front", "type": "catalina"}]
		}`)
	})

	mux.HandleFunc("/api/v1/accounts/1234/networks/1/owls/21/config", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{
			"camera": [{"id": 21, "network_id": 1, "name": "Patio Mini", "enabled": true, "thumbnail": "/media/thumb/patio", "type": "owl"}]
		}`)
	})

	mux.HandleFunc("/media/thumb/front.jpg", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "front-door-jpeg")
	})

	mux.HandleFunc("/media/thumb/patio.jpg", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "patio-jpeg")
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	b := startTestBlink(t, server.URL)

	module, ok := b.SyncModuleByName("Sync Hub")
	if !ok {
		t.Fatal("expected sync module Sync Hub to be discovered")
	}

	mini, ok := module.Camera("Patio Mini")
	if !ok {
		t.Fatal("expected the mini to join its network's sync module")
	}
	if mini.Kind != blink.KindMini {
		t.Errorf("expected kind %q, got %q", blink.KindMini, mini.Kind)
	}

	// No virtual module: the mini's network already has a real one.
	if _, ok := b.SyncModuleByName("Patio Mini"); ok {
		t.Error("mini on a discovered network must not get a virtual module")
	}
	if len(b.Sync) != 1 {
		t.Errorf("expected exactly one sync module, got %d", len(b.Sync))
	}
}

func TestStartToleratesCameraFailure(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()

	mux.HandleFunc("/networks", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"summary": {"1": {"name": "Home", "onboarded": true}}}`)
	})

	mux.HandleFunc("/api/v3/accounts/1234/homescreen", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"owls": [], "doorbells": []}`)
	})

	mux.HandleFunc("/api/v1/camera/usage", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{
			"networks": [{"network_id": 1, "name": "Home", "cameras": [
				{"id": 10, "name": "Front Door"},
				{"id": 11, "name": "Good Cam"}
			]}]
		}`)
	})

	mux.HandleFunc("/network/1/syncmodules", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"syncmodule": {"id": 100, "network_id": 1, "name": "Sync Hub", "serial": "S1", "status": "online"}}`)
	})

	mux.HandleFunc("/network/1", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"network": {"id": 1, "name": "Home", "armed": false, "onboarded": true}}`)
	})

	mux.HandleFunc("/api/v1/accounts/1234/media/changed", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"limit": 25, "media": []}`)
	})

	mux.HandleFunc("/network/1/camera/10/config", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{
			"camera": [{"id": 10, "network_id": 1, "name": "Front Door", "enabled": true, "thumbnail": "/media/thumb/front", "type": "catalina"}]
		}`)
	})

	mux.HandleFunc("/network/1/camera/11/config", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{
			"camera": [{"id": 11, "network_id": 1, "name": "Good Cam", "enabled": true, "thumbnail": "/media/thumb/good", "type": "catalina"}]
		}`)
	})

	// One camera's media is broken; its siblings must still come up.
	mux.HandleFunc("/media/thumb/front.jpg", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	mux.HandleFunc("/media/thumb/good.jpg", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "good-cam-jpeg")
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	b := startTestBlink(t, server.URL)

	if !b.Available() {
		t.Error("expected the client to be available despite one failing camera")
	}

	if _, ok := b.SyncModuleByName("Sync Hub"); !ok {
		t.Fatal("expected the sync module to be registered")
	}

	good, ok := b.Camera("Good Cam")
	if !ok {
		t.Fatal("expected the healthy camera to be discovered")
	}
	if !bytes.Equal(good.Image(), []byte("good-cam-jpeg")) {
		t.Errorf("unexpected cached thumbnail %q", good.Image())
	}

	// The failing camera stays in the model with empty media.
	bad, ok := b.Camera("Front Door")
	if !ok {
		t.Fatal("expected the failing camera to stay in the model")
	}
	if bad.Image() != nil {
		t.Errorf("expected no cached thumbnail for the failing camera, got %q", bad.Image())
	}
}

func TestCameraLookupIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{}
	server := backend.server(t)

	b := startTestBlink(t, server.URL)

	for _, name := range []string{"Front Door", "front door", "FRONT DOOR", "FrOnT dOoR"} {
		if _, ok := b.Camera(name); !ok {
			t.Errorf("expected lookup %q to find the camera", name)
		}
	}

	if _, ok := b.Camera("Back Door"); ok {
		t.Error("unknown camera name must not resolve")
	}
}

func TestRefresh(t *testing.T) {
	t.Parallel()

	t.Run("unforced refresh inside the window is skipped", func(t *testing.T) {
		t.Parallel()

		backend := &fakeBackend{}
		server := backend.server(t)

		b := startTestBlink(t, server.URL)

		refreshed, err := b.Refresh(context.Background(), false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if refreshed {
			t.Error("refresh inside the window must be skipped")
		}
	})

	t.Run("unforced refresh outside the window skips unchanged media", func(t *testing.T) {
		t.Parallel()

		backend := &fakeBackend{}
		server := backend.server(t)

		b, err := blink.New(blink.Config{
			Credentials: &blink.Credentials{
				Token:     "test-token",
				RegionID:  "test",
				AccountID: 1234,
				ClientID:  9012,
			},
			BaseURL:      server.URL,
			LoginURL:     server.URL + "/api/v5/account/login",
			RefreshRate:  50 * time.Millisecond,
			PollInterval: time.Millisecond,
			PollAttempts: 3,
		})
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}
		if err := b.Start(context.Background()); err != nil {
			t.Fatalf("failed to start client: %v", err)
		}

		backend.mu.Lock()
		afterStart := backend.thumbFetches
		backend.mu.Unlock()
		if afterStart != 1 {
			t.Fatalf("expected one thumbnail download during discovery, got %d", afterStart)
		}

		time.Sleep(60 * time.Millisecond)

		refreshed, err := b.Refresh(context.Background(), false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !refreshed {
			t.Fatal("refresh outside the window must run")
		}

		backend.mu.Lock()
		afterRefresh := backend.thumbFetches
		backend.mu.Unlock()
		if afterRefresh != afterStart {
			t.Errorf("unforced refresh with unchanged server data must not re-download media, downloads went %d to %d", afterStart, afterRefresh)
		}
	})

	t.Run("forced refresh is idempotent", func(t *testing.T) {
		t.Parallel()

		backend := &fakeBackend{}
		server := backend.server(t)

		b := startTestBlink(t, server.URL)

		camera, ok := b.Camera("Front Door")
		if !ok {
			t.Fatal("expected camera Front Door")
		}

		before := append([]byte(nil), camera.Image()...)

		refreshed, err := b.Refresh(context.Background(), true)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !refreshed {
			t.Fatal("forced refresh must run")
		}

		if !bytes.Equal(before, camera.Image()) {
			t.Error("refresh with unchanged server state must leave the cached image identical")
		}
	})
}

func TestSyncModuleArm(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{}
	server := backend.server(t)

	b := startTestBlink(t, server.URL)

	module, ok := b.SyncModuleByName("Sync Hub")
	if !ok {
		t.Fatal("expected sync module Sync Hub")
	}
	if module.Armed() {
		t.Fatal("expected the network to start disarmed")
	}

	if err := module.Arm(context.Background(), true); err != nil {
		t.Fatalf("failed to arm: %v", err)
	}

	if !module.Armed() {
		t.Error("expected the network to report armed after the command completed")
	}

	backend.mu.Lock()
	polls := backend.armPolls
	backend.mu.Unlock()
	if polls != 2 {
		t.Errorf("expected 2 command polls (pending then complete), got %d", polls)
	}
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	if _, err := blink.New(blink.Config{}); err == nil {
		t.Fatal("expected an error without credentials")
	}

	if _, err := blink.New(blink.Config{Username: "user@example.com", Password: "secret"}); err != nil {
		t.Fatalf("unexpected error with username and password: %v", err)
	}

	if _, err := blink.New(blink.Config{
		Credentials: &blink.Credentials{Token: "tok", RegionID: "u011"},
	}); err != nil {
		t.Fatalf("unexpected error with saved credentials: %v", err)
	}
}
