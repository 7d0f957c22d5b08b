// Package config turns the viper-backed TOML configuration into immutable
// per-display snapshots. A surface never mutates its snapshot; on reload
// it receives a freshly built one and decides what changed by comparing
// values, not by dirty flags.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/driftpaper/driftpaper/internal/render"
)

// WallpaperInfo is the configuration snapshot for one surface. Snapshots
// are shared as pointers but treated as immutable; Equal compares by
// value so a reloaded-but-identical config is a no-op for the scheduler.
type WallpaperInfo struct {
	// Path is a single image file or a directory to rotate through.
	Path string
	// Duration between automatic rotations; zero disables rotation.
	Duration time.Duration
	Mode     render.ScalingMode
	Easing   render.EasingMode
	// FadeSpeed is how long the crossfade to a new image runs.
	FadeSpeed time.Duration
	Shuffle   bool
}

func (w *WallpaperInfo) Equal(o *WallpaperInfo) bool {
	if w == nil || o == nil {
		return w == o
	}
	return *w == *o
}

// Config holds the defaults plus per-display overrides for one load of
// the config file.
type Config struct {
	defaults WallpaperInfo
	displays map[string]WallpaperInfo
}

// For returns the snapshot for the named display, falling back to the
// defaults. The returned pointer is freshly allocated per call so that
// surfaces on the same settings still hold independent snapshots.
// Viper lowercases table keys, so the lookup is case-insensitive.
func (c *Config) For(display string) *WallpaperInfo {
	info := c.defaults
	if override, ok := c.displays[strings.ToLower(display)]; ok {
		info = override
	}
	return &info
}

// Displays lists the display names that carry explicit overrides.
func (c *Config) Displays() []string {
	names := make([]string, 0, len(c.displays))
	for name := range c.displays {
		names = append(names, name)
	}
	return names
}

// Load builds a Config from the current viper state. Called at startup
// and again on every reload command or config-file change.
func Load(v *viper.Viper, expandPath func(string) string) (*Config, error) {
	defaults, err := infoFromSettings(v.AllSettings(), WallpaperInfo{
		Duration:  5 * time.Minute,
		Mode:      render.ScalingModeFitVertical,
		Easing:    render.EasingEaseInOut,
		FadeSpeed: time.Second,
		Shuffle:   true,
	}, expandPath)
	if err != nil {
		return nil, fmt.Errorf("default section: %w", err)
	}

	cfg := &Config{
		defaults: defaults,
		displays: make(map[string]WallpaperInfo),
	}

	for name, raw := range v.GetStringMap("display") {
		section, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("display.%s: expected a table", name)
		}
		info, err := infoFromSettings(section, defaults, expandPath)
		if err != nil {
			return nil, fmt.Errorf("display.%s: %w", name, err)
		}
		cfg.displays[name] = info
	}

	return cfg, nil
}

func infoFromSettings(settings map[string]any, base WallpaperInfo, expandPath func(string) string) (WallpaperInfo, error) {
	info := base

	if raw, ok := settings["wallpapers"]; ok {
		info.Path = expandPath(cast.ToString(raw))
	}
	if raw, ok := settings["duration"]; ok {
		d, err := parseDuration(raw)
		if err != nil {
			return info, fmt.Errorf("duration: %w", err)
		}
		info.Duration = d
	}
	if raw, ok := settings["scale_mode"]; ok {
		info.Mode = render.ScalingMode(cast.ToString(raw))
	}
	if raw, ok := settings["easing"]; ok {
		info.Easing = render.EasingMode(cast.ToString(raw))
	}
	if raw, ok := settings["fade_speed"]; ok {
		secs := cast.ToFloat64(raw)
		info.FadeSpeed = time.Duration(secs * float64(time.Second))
	}
	if raw, ok := settings["shuffle"]; ok {
		info.Shuffle = cast.ToBool(raw)
	}

	return info, nil
}

// parseDuration accepts either a Go duration string ("90s", "5m") or a
// bare number of seconds. The empty string disables rotation.
func parseDuration(raw any) (time.Duration, error) {
	switch v := raw.(type) {
	case string:
		if v == "" {
			return 0, nil
		}
		return time.ParseDuration(v)
	default:
		secs := cast.ToFloat64(raw)
		return time.Duration(secs * float64(time.Second)), nil
	}
}
