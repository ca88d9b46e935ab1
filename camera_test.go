package blink_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fronzbot/blinkgo"
)

func TestTemperatureC(t *testing.T) {
	t.Parallel()

	tests := []struct {
		fahrenheit float64
		want       float64
	}{
		{32, 0},
		{68, 20},
		{33.8, 1},
		{20.3, -6.5},
	}

	for _, tt := range tests {
		camera := &blink.Camera{Temperature: tt.fahrenheit}
		if got := camera.TemperatureC(); got != tt.want {
			t.Errorf("TemperatureC for %vF = %v, want %v", tt.fahrenheit, got, tt.want)
		}
	}
}

func TestCameraThumbnailForms(t *testing.T) {
	t.Parallel()

	// Catch-all server: thumbnails download from any path, the signals
	// endpoint is absent so calibration falls back to the config temperature.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/network/1/camera/10/signals" {
			w.WriteHeader(http.StatusNotFound)

			return
		}
		fmt.Fprint(w, "img")
	}))
	t.Cleanup(server.Close)

	newCamera := func(t *testing.T) *blink.Camera {
		t.Helper()

		b := newTestBlink(t, server.URL)
		module := blink.NewSyncModule(b, "Home", 1, nil)

		camera := blink.NewCamera(module, blink.KindDefault)
		camera.ID = 10
		camera.NetworkID = 1

		return camera
	}

	update := func(t *testing.T, camera *blink.Camera, thumb string) {
		t.Helper()

		err := camera.Update(context.Background(), blink.CameraConfig{
			ID:        10,
			NetworkID: 1,
			Name:      "Front Door",
			Type:      "catalina",
			Thumbnail: thumb,
		}, false)
		if err != nil {
			t.Fatalf("unexpected update error: %v", err)
		}
	}

	t.Run("numeric timestamp", func(t *testing.T) {
		t.Parallel()

		camera := newCamera(t)
		update(t, camera, "1700000000")

		want := server.URL + "/api/v3/media/accounts/1234/networks/1/catalina/10/thumbnail/thumbnail.jpg?ts=1700000000&ext="
		if camera.ThumbnailURL != want {
			t.Errorf("unexpected thumbnail url:\ngot  %s\nwant %s", camera.ThumbnailURL, want)
		}
	})

	t.Run("complete url", func(t *testing.T) {
		t.Parallel()

		camera := newCamera(t)
		update(t, camera, server.URL+"/direct/thumb.jpg")

		if camera.ThumbnailURL != server.URL+"/direct/thumb.jpg" {
			t.Errorf("unexpected thumbnail url %s", camera.ThumbnailURL)
		}
	})

	t.Run("path with ext marker", func(t *testing.T) {
		t.Parallel()

		camera := newCamera(t)
		update(t, camera, "/thumb/abc&ext=")

		if camera.ThumbnailURL != server.URL+"/thumb/abc&ext=" {
			t.Errorf("unexpected thumbnail url %s", camera.ThumbnailURL)
		}
	})

	t.Run("bare path gets jpg extension", func(t *testing.T) {
		t.Parallel()

		camera := newCamera(t)
		update(t, camera, "/thumb/abc")

		if camera.ThumbnailURL != server.URL+"/thumb/abc.jpg" {
			t.Errorf("unexpected thumbnail url %s", camera.ThumbnailURL)
		}
		if string(camera.Image()) != "img" {
			t.Errorf("expected cached image bytes, got %q", camera.Image())
		}
	})

	t.Run("missing thumbnail", func(t *testing.T) {
		t.Parallel()

		camera := newCamera(t)
		update(t, camera, "")

		if camera.ThumbnailURL != "" {
			t.Errorf("expected empty thumbnail url, got %s", camera.ThumbnailURL)
		}
		if camera.Image() != nil {
			t.Error("no image must be cached without a thumbnail")
		}
	})

	t.Run("sensor fallback uses config temperature", func(t *testing.T) {
		t.Parallel()

		camera := newCamera(t)

		err := camera.Update(context.Background(), blink.CameraConfig{
			ID:          10,
			NetworkID:   1,
			Temperature: 68,
			Thumbnail:   "/thumb/abc",
		}, false)
		if err != nil {
			t.Fatalf("unexpected update error: %v", err)
		}

		if camera.TemperatureCalibrated != 68 {
			t.Errorf("expected fallback calibrated temperature 68, got %v", camera.TemperatureCalibrated)
		}
	})
}

func TestCameraArmed(t *testing.T) {
	t.Parallel()

	camera := blink.NewCamera(nil, blink.KindDefault)
	camera.MotionEnabled = true

	if !camera.Armed() {
		t.Error("standard camera arm state must follow motion detection")
	}

	camera.MotionEnabled = false
	if camera.Armed() {
		t.Error("expected disarmed camera")
	}
}
