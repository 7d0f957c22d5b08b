// Package filelist caches the sorted image listing of each wallpaper
// directory and keeps it fresh with an fsnotify watcher, so pickers never
// hit the filesystem on the rotation hot path.
package filelist

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

// IsImagePath reports whether path has a decodable image extension.
func IsImagePath(path string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(path))]
}

// Cache maps a directory to its sorted list of image paths. Lookups are
// served from memory; the watcher goroutine rescans a directory whenever
// fsnotify reports a change under it.
type Cache struct {
	mu      sync.Mutex
	dirs    map[string][]string
	watcher *fsnotify.Watcher
	done    chan struct{}
}

func New() (*Cache, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	c := &Cache{
		dirs:    make(map[string][]string),
		watcher: watcher,
		done:    make(chan struct{}),
	}
	go c.watch()
	return c, nil
}

// Images returns the cached sorted image paths under dir, scanning and
// registering a watch on first use.
func (c *Cache) Images(dir string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if files, ok := c.dirs[dir]; ok {
		return files
	}

	files := scan(dir)
	c.dirs[dir] = files
	if err := c.watcher.Add(dir); err != nil {
		log.Debugf("watching %s: %v", dir, err)
	}
	return files
}

func (c *Cache) watch() {
	for {
		select {
		case <-c.done:
			return
		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			c.rescan(filepath.Dir(event.Name))
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			log.Warnf("filelist watcher: %v", err)
		}
	}
}

func (c *Cache) rescan(dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.dirs[dir]; !ok {
		return
	}
	c.dirs[dir] = scan(dir)
	log.Debugf("rescanned %s: %d images", dir, len(c.dirs[dir]))
}

func scan(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Warnf("reading wallpaper directory %s: %v", dir, err)
		return nil
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if IsImagePath(entry.Name()) {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files
}

func (c *Cache) Close() error {
	close(c.done)
	return c.watcher.Close()
}
