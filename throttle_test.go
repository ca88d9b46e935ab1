package blink_test

import (
	"testing"
	"time"

	"github.com/fronzbot/blinkgo"
)

func TestThrottle(t *testing.T) {
	t.Parallel()

	t.Run("suppresses repeat calls within the interval", func(t *testing.T) {
		t.Parallel()

		throttle := blink.NewThrottle(time.Minute)

		if !throttle.Allow("homescreen", false) {
			t.Fatal("first call must be allowed")
		}
		if throttle.Allow("homescreen", false) {
			t.Error("second call inside the interval must be suppressed")
		}
	})

	t.Run("force always allows", func(t *testing.T) {
		t.Parallel()

		throttle := blink.NewThrottle(time.Minute)

		if !throttle.Allow("arm:1", false) {
			t.Fatal("first call must be allowed")
		}
		if !throttle.Allow("arm:1", true) {
			t.Error("forced call must be allowed")
		}
	})

	t.Run("keys are independent", func(t *testing.T) {
		t.Parallel()

		throttle := blink.NewThrottle(time.Minute)

		if !throttle.Allow("events:1", false) {
			t.Fatal("first call must be allowed")
		}
		if !throttle.Allow("events:2", false) {
			t.Error("a different key must not be suppressed")
		}
	})

	t.Run("allows again after the interval", func(t *testing.T) {
		t.Parallel()

		throttle := blink.NewThrottle(20 * time.Millisecond)

		if !throttle.Allow("video_count", false) {
			t.Fatal("first call must be allowed")
		}

		time.Sleep(30 * time.Millisecond)

		if !throttle.Allow("video_count", false) {
			t.Error("call after the interval must be allowed")
		}
	})

	t.Run("force resets the window", func(t *testing.T) {
		t.Parallel()

		throttle := blink.NewThrottle(time.Minute)

		if !throttle.Allow("homescreen", true) {
			t.Fatal("forced call must be allowed")
		}
		if throttle.Allow("homescreen", false) {
			t.Error("forced call must still start a suppression window")
		}
	})
}
