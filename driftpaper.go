package driftpaper

import (
	_ "embed"
)

// Version is stamped from the VERSION file at build time.
//
//go:embed VERSION
var Version string

// DefaultConfig is installed verbatim by `driftpaper --installconfig`.
//
//go:embed driftpaper.toml
var DefaultConfig string
