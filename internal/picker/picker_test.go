package picker

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/driftpaper/driftpaper/internal/config"
	"github.com/driftpaper/driftpaper/internal/filelist"
	"github.com/driftpaper/driftpaper/internal/imageloader"
	"github.com/driftpaper/driftpaper/internal/wakeup"
)

func wallpaperDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			t.Fatal(err)
		}
		if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
			t.Fatal(err)
		}
		f.Close()
	}
	return dir
}

func newTestPicker(t *testing.T, info *config.WallpaperInfo, clock clockwork.Clock) (*Picker, wakeup.Signal) {
	t.Helper()
	fl, err := filelist.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { fl.Close() })
	wake := wakeup.New()
	return New("DP-1", info, fl, imageloader.New(wake), clock), wake
}

func TestSequentialRotation(t *testing.T) {
	dir := wallpaperDir(t, "a.png", "b.png", "c.png")
	clock := clockwork.NewFakeClock()
	p, _ := newTestPicker(t, &config.WallpaperInfo{Path: dir}, clock)

	if got := p.CurrentImage(); got != filepath.Join(dir, "a.png") {
		t.Fatalf("CurrentImage = %q, want a.png", got)
	}

	p.NextImage()
	if got := p.CurrentImage(); got != filepath.Join(dir, "b.png") {
		t.Fatalf("after NextImage: %q, want b.png", got)
	}

	p.PreviousImage()
	if got := p.CurrentImage(); got != filepath.Join(dir, "a.png") {
		t.Fatalf("after PreviousImage: %q, want a.png", got)
	}

	// Wraps around both ways.
	p.PreviousImage()
	if got := p.CurrentImage(); got != filepath.Join(dir, "c.png") {
		t.Fatalf("wrap backwards: %q, want c.png", got)
	}
	p.NextImage()
	if got := p.CurrentImage(); got != filepath.Join(dir, "a.png") {
		t.Fatalf("wrap forward: %q, want a.png", got)
	}
}

func TestNextImageStampsChangeInstant(t *testing.T) {
	dir := wallpaperDir(t, "a.png", "b.png")
	clock := clockwork.NewFakeClock()
	p, _ := newTestPicker(t, &config.WallpaperInfo{Path: dir}, clock)

	clock.Advance(42 * time.Second)
	p.NextImage()
	if !p.ImageChangedInstant.Equal(clock.Now()) {
		t.Errorf("ImageChangedInstant = %v, want %v", p.ImageChangedInstant, clock.Now())
	}
}

func TestShuffleNeverRepeatsImmediately(t *testing.T) {
	dir := wallpaperDir(t, "a.png", "b.png", "c.png")
	clock := clockwork.NewFakeClock()
	p, _ := newTestPicker(t, &config.WallpaperInfo{Path: dir, Shuffle: true}, clock)

	for i := 0; i < 50; i++ {
		before := p.CurrentImage()
		p.NextImage()
		if p.CurrentImage() == before {
			t.Fatal("shuffle repeated the same image back to back")
		}
	}
}

func TestSingleFilePathIsItsOwnRotation(t *testing.T) {
	dir := wallpaperDir(t, "only.png")
	file := filepath.Join(dir, "only.png")
	clock := clockwork.NewFakeClock()
	p, _ := newTestPicker(t, &config.WallpaperInfo{Path: file}, clock)

	if got := p.CurrentImage(); got != file {
		t.Fatalf("CurrentImage = %q, want the file itself", got)
	}
	p.NextImage()
	if got := p.CurrentImage(); got != file {
		t.Fatalf("NextImage moved off a single-file source: %q", got)
	}
}

func TestUpdateReportsPathChange(t *testing.T) {
	dirA := wallpaperDir(t, "a.png")
	dirB := wallpaperDir(t, "b.png")
	clock := clockwork.NewFakeClock()
	p, _ := newTestPicker(t, &config.WallpaperInfo{Path: dirA, Duration: time.Minute}, clock)

	// Duration-only change: same path.
	if p.Update(&config.WallpaperInfo{Path: dirA, Duration: 2 * time.Minute}) {
		t.Error("Update reported a path change for a duration-only edit")
	}

	clock.Advance(10 * time.Second)
	if !p.Update(&config.WallpaperInfo{Path: dirB, Duration: 2 * time.Minute}) {
		t.Error("Update missed a source directory change")
	}
	if got := p.CurrentImage(); got != filepath.Join(dirB, "b.png") {
		t.Errorf("CurrentImage = %q, want image from new directory", got)
	}
	if !p.ImageChangedInstant.Equal(clock.Now()) {
		t.Error("path change did not stamp ImageChangedInstant")
	}
}

func TestGetImagePollsLoader(t *testing.T) {
	dir := wallpaperDir(t, "a.png")
	clock := clockwork.NewFakeClock()
	p, wake := newTestPicker(t, &config.WallpaperInfo{Path: dir}, clock)

	img, err := p.GetImage()
	if img != nil || err != nil {
		t.Fatalf("first poll: got (%v, %v), want pending (nil, nil)", img, err)
	}

	select {
	case <-wake.C():
	case <-time.After(5 * time.Second):
		t.Fatal("decode never completed")
	}

	img, err = p.GetImage()
	if err != nil || img == nil {
		t.Fatalf("second poll: got (%v, %v), want decoded image", img, err)
	}
}

// Each decoded image is handed out exactly once; polling again must not
// spawn a fresh decode of the image already on screen.
func TestGetImageDeliversEachImageOnce(t *testing.T) {
	dir := wallpaperDir(t, "a.png", "b.png")
	clock := clockwork.NewFakeClock()
	p, wake := newTestPicker(t, &config.WallpaperInfo{Path: dir}, clock)

	if !p.Loading() {
		t.Fatal("fresh picker must report a pending image")
	}
	p.GetImage()
	select {
	case <-wake.C():
	case <-time.After(5 * time.Second):
		t.Fatal("decode never completed")
	}

	if img, err := p.GetImage(); img == nil || err != nil {
		t.Fatalf("got (%v, %v), want decoded image", img, err)
	}
	if p.Loading() {
		t.Error("delivered image still reported as pending")
	}
	if img, err := p.GetImage(); img != nil || err != nil {
		t.Fatalf("re-poll got (%v, %v), want nothing new", img, err)
	}

	p.NextImage()
	if !p.Loading() {
		t.Error("rotation did not mark the new image as pending")
	}
}

func TestGetImageSurfacesDecodeFailure(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.png")
	if err := os.WriteFile(bad, []byte("junk"), 0o644); err != nil {
		t.Fatal(err)
	}
	clock := clockwork.NewFakeClock()
	p, wake := newTestPicker(t, &config.WallpaperInfo{Path: bad}, clock)

	p.GetImage()
	select {
	case <-wake.C():
	case <-time.After(5 * time.Second):
		t.Fatal("decode never completed")
	}

	if _, err := p.GetImage(); err != ErrLoadFailed {
		t.Fatalf("err = %v, want ErrLoadFailed", err)
	}
}

func TestEmptySourceYieldsNoImage(t *testing.T) {
	clock := clockwork.NewFakeClock()
	p, _ := newTestPicker(t, &config.WallpaperInfo{Path: t.TempDir()}, clock)

	if got := p.CurrentImage(); got != "" {
		t.Fatalf("CurrentImage = %q, want empty", got)
	}
	if img, err := p.GetImage(); img != nil || err != nil {
		t.Fatalf("GetImage = (%v, %v), want (nil, nil)", img, err)
	}
}
