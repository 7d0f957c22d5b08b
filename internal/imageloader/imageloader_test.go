package imageloader

import (
	"image"
	"image/color"
	"image/png"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/driftpaper/driftpaper/internal/wakeup"
)

func writePNG(t *testing.T, name string, c color.RGBA) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
	}
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeGarbage(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// waitWake blocks until the decode worker signals completion.
func waitWake(t *testing.T, wake wakeup.Signal) {
	t.Helper()
	select {
	case <-wake.C():
	case <-time.After(5 * time.Second):
		t.Fatal("decode worker never signaled the wakeup")
	}
}

func TestSoleRequesterConsumesAndRemovesEntry(t *testing.T) {
	path := writePNG(t, "red.png", color.RGBA{R: 255, A: 255})
	wake := wakeup.New()
	loader := New(wake)

	img, status := loader.Load(path, "eDP-1")
	if status != StatusWaiting || img != nil {
		t.Fatalf("first request: got (%v, %v), want (nil, waiting)", img, status)
	}

	waitWake(t, wake)

	img, status = loader.Load(path, "eDP-1")
	if status != StatusLoaded || img == nil {
		t.Fatalf("after decode: got (%v, %v), want (img, loaded)", img, status)
	}
	if img.Pix[0] != 255 {
		t.Errorf("decoded pixel = %d, want 255", img.Pix[0])
	}
	if loader.Pending() != 0 {
		t.Errorf("entry leaked after sole requester consumed it")
	}
}

func TestSharedPathSurvivesUntilLastRequester(t *testing.T) {
	path := writePNG(t, "green.png", color.RGBA{G: 255, A: 255})
	wake := wakeup.New()
	loader := New(wake)

	requesters := []string{"DP-1", "DP-2", "HDMI-1"}
	for _, name := range requesters {
		if _, status := loader.Load(path, name); status != StatusWaiting {
			t.Fatalf("%s: status = %v, want waiting", name, status)
		}
	}

	waitWake(t, wake)

	// The first two polls get copies and leave the entry in place.
	var copies []*image.RGBA
	for _, name := range requesters[:2] {
		img, status := loader.Load(path, name)
		if status != StatusLoaded || img == nil {
			t.Fatalf("%s: got (%v, %v), want (img, loaded)", name, img, status)
		}
		copies = append(copies, img)
		if loader.Pending() != 1 {
			t.Fatalf("%s: entry dropped before last requester consumed it", name)
		}
	}

	// Mutating one copy must not affect the other.
	copies[0].Pix[1] = 0
	if copies[1].Pix[1] != 255 {
		t.Error("shared delivery aliased buffers between requesters")
	}

	img, status := loader.Load(path, requesters[2])
	if status != StatusLoaded || img == nil {
		t.Fatalf("last requester: got (%v, %v), want (img, loaded)", img, status)
	}
	if loader.Pending() != 0 {
		t.Error("entry leaked after last requester consumed it")
	}
}

func TestDecodeFailurePurgesEntry(t *testing.T) {
	path := writeGarbage(t, "broken.jpg")
	wake := wakeup.New()
	loader := New(wake)

	if _, status := loader.Load(path, "eDP-1"); status != StatusWaiting {
		t.Fatalf("status = %v, want waiting", status)
	}
	waitWake(t, wake)

	if _, status := loader.Load(path, "eDP-1"); status != StatusError {
		t.Fatalf("status = %v, want error", status)
	}
	if loader.Pending() != 0 {
		t.Error("failed entry not purged")
	}
}

// A path whose decode failed and was purged behaves exactly like a
// first-ever request: a fresh worker is spawned.
func TestFailedPathRequestIsIdempotent(t *testing.T) {
	path := writeGarbage(t, "broken.png")
	wake := wakeup.New()
	loader := New(wake)

	for round := 0; round < 3; round++ {
		if _, status := loader.Load(path, "eDP-1"); status != StatusWaiting {
			t.Fatalf("round %d: status = %v, want waiting", round, status)
		}
		waitWake(t, wake)
		if _, status := loader.Load(path, "eDP-1"); status != StatusError {
			t.Fatalf("round %d: status = %v, want error", round, status)
		}
	}
}

func TestMissingFileReportsError(t *testing.T) {
	wake := wakeup.New()
	loader := New(wake)

	loader.Load("/nonexistent/wallpaper.png", "eDP-1")
	waitWake(t, wake)

	if _, status := loader.Load("/nonexistent/wallpaper.png", "eDP-1"); status != StatusError {
		t.Fatalf("status = %v, want error", status)
	}
}

// Two surfaces racing for the same path: exactly one decode runs and both
// receive correct pixels, in either consumption order.
func TestConcurrentRequestersAnyOrder(t *testing.T) {
	for _, order := range [][]string{
		{"DP-1", "DP-2"},
		{"DP-2", "DP-1"},
	} {
		path := writePNG(t, "blue.png", color.RGBA{B: 255, A: 255})
		wake := wakeup.New()
		loader := New(wake)

		loader.Load(path, "DP-1")
		loader.Load(path, "DP-2")
		if loader.Pending() != 1 {
			t.Fatalf("pending = %d, want a single deduplicated entry", loader.Pending())
		}

		waitWake(t, wake)

		for _, name := range order {
			img, status := loader.Load(path, name)
			if status != StatusLoaded || img == nil {
				t.Fatalf("%s: got (%v, %v), want (img, loaded)", name, img, status)
			}
			if img.Pix[2] != 255 {
				t.Errorf("%s: pixel = %d, want 255", name, img.Pix[2])
			}
		}
		if loader.Pending() != 0 {
			t.Errorf("order %v: entry leaked", order)
		}
	}
}

// Randomized request sequences must never leave an entry with an empty
// requester list.
func TestNoEmptyRequesterListFuzz(t *testing.T) {
	paths := []string{
		writePNG(t, "a.png", color.RGBA{R: 1, A: 255}),
		writePNG(t, "b.png", color.RGBA{G: 1, A: 255}),
		writeGarbage(t, "c.png"),
	}
	names := []string{"DP-1", "DP-2", "DP-3", "eDP-1"}

	wake := wakeup.New()
	loader := New(wake)
	rng := rand.New(rand.NewPCG(42, 0))

	for i := 0; i < 2000; i++ {
		loader.Load(paths[rng.IntN(len(paths))], names[rng.IntN(len(names))])
		loader.CheckLingering()
		if i%100 == 0 {
			// Let some decodes finish to exercise join paths.
			select {
			case <-wake.C():
			case <-time.After(100 * time.Millisecond):
			}
		}
	}
}

func TestStatusString(t *testing.T) {
	if s := StatusLoaded.String(); s != "loaded" {
		t.Errorf("got %q", s)
	}
	if s := Status(42).String(); s != "Status(42)" {
		t.Errorf("got %q", s)
	}
}
