// Package picker decides which image a surface shows. It owns the
// rotation cursor over the file-list cache and is the only component that
// talks to the image loader, so the surface scheduler never blocks on
// disk or decode work.
package picker

import (
	"errors"
	"image"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/driftpaper/driftpaper/internal/config"
	"github.com/driftpaper/driftpaper/internal/filelist"
	"github.com/driftpaper/driftpaper/internal/imageloader"
)

// ErrLoadFailed is returned by GetImage when the decode of the current
// image failed. The caller keeps its last rendered image; the next poll
// starts a fresh decode.
var ErrLoadFailed = errors.New("image decode failed")

type Picker struct {
	// ImageChangedInstant is when the displayed image last changed, by
	// rotation or by command. The surface scheduler reads it to
	// preserve a rotation schedule across config reloads.
	ImageChangedInstant time.Time

	name     string
	info     *config.WallpaperInfo
	filelist *filelist.Cache
	loader   *imageloader.Loader
	clock    clockwork.Clock
	current  string

	// delivered is the last path GetImage handed out. While it trails
	// current, a decode is pending and the surface keeps polling.
	delivered string
}

func New(name string, info *config.WallpaperInfo, fl *filelist.Cache, loader *imageloader.Loader, clock clockwork.Clock) *Picker {
	p := &Picker{
		name:     name,
		info:     info,
		filelist: fl,
		loader:   loader,
		clock:    clock,
	}
	p.current = p.firstImage()
	p.ImageChangedInstant = clock.Now()
	return p
}

// CurrentImage returns the path of the image the surface should display.
// Empty when the configured source holds no images.
func (p *Picker) CurrentImage() string {
	return p.current
}

// NextImage advances the rotation cursor and stamps the change instant.
func (p *Picker) NextImage() {
	p.advance(1)
}

// PreviousImage steps the cursor backwards.
func (p *Picker) PreviousImage() {
	p.advance(-1)
}

func (p *Picker) advance(step int) {
	images := p.images()
	if len(images) == 0 {
		p.current = ""
		return
	}

	var next string
	if p.info.Shuffle && len(images) > 1 {
		// Random pick, avoiding an immediate repeat.
		for {
			next = images[rand.IntN(len(images))]
			if next != p.current {
				break
			}
		}
	} else {
		idx := slices.Index(images, p.current)
		idx = (idx + step + len(images)) % len(images)
		next = images[idx]
	}

	if next != p.current {
		p.current = next
		p.ImageChangedInstant = p.clock.Now()
	}
}

// Update swaps in a new configuration snapshot and reports whether the
// active image path changed as a result.
func (p *Picker) Update(info *config.WallpaperInfo) bool {
	pathChanged := info.Path != p.info.Path
	p.info = info
	if !pathChanged {
		return false
	}

	p.current = p.firstImage()
	p.ImageChangedInstant = p.clock.Now()
	return true
}

// GetImage polls the loader for the current image without blocking.
// Each image is handed out once; after that (nil, nil) means there is
// nothing new to show, and while a decode is in flight it means poll
// again after the next wakeup.
func (p *Picker) GetImage() (*image.RGBA, error) {
	path := p.CurrentImage()
	if path == "" || path == p.delivered {
		return nil, nil
	}

	img, status := p.loader.Load(path, p.name)
	switch status {
	case imageloader.StatusLoaded:
		p.delivered = path
		return img, nil
	case imageloader.StatusError:
		return nil, ErrLoadFailed
	default:
		return nil, nil
	}
}

// Loading reports whether the displayed image still has a decode that
// has not been handed out yet.
func (p *Picker) Loading() bool {
	return p.current != "" && p.current != p.delivered
}

// images resolves the configured source to candidate paths: a single
// image file stands alone, anything else is treated as a directory.
func (p *Picker) images() []string {
	if p.info.Path == "" {
		return nil
	}
	if filelist.IsImagePath(p.info.Path) {
		return []string{p.info.Path}
	}
	return p.filelist.Images(p.info.Path)
}

func (p *Picker) firstImage() string {
	images := p.images()
	if len(images) == 0 {
		return ""
	}
	if p.info.Shuffle {
		return images[rand.IntN(len(images))]
	}
	return images[0]
}
