// Package daemon assembles the wallpaper service: one event loop owning
// every surface and timer, a shared image loader and file-list cache, and
// the glue that turns IPC commands and config reloads into scheduler
// reconciles. Everything GPU-touching runs on the loop goroutine, which
// is locked to the main OS thread.
package daemon

import (
	"fmt"
	"runtime"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/viper"

	"github.com/driftpaper/driftpaper/internal/config"
	"github.com/driftpaper/driftpaper/internal/eventloop"
	"github.com/driftpaper/driftpaper/internal/filelist"
	"github.com/driftpaper/driftpaper/internal/glrenderer"
	"github.com/driftpaper/driftpaper/internal/imageloader"
	"github.com/driftpaper/driftpaper/internal/ipc"
	"github.com/driftpaper/driftpaper/internal/picker"
	"github.com/driftpaper/driftpaper/internal/surface"
)

type Daemon struct {
	loop     *eventloop.Loop
	loader   *imageloader.Loader
	filelist *filelist.Cache
	cfg      *config.Config

	surfaces  map[string]*surface.Surface
	contexts  map[string]*glrenderer.Context
	renderers map[string]*glrenderer.Renderer

	expandPath func(string) string
	debug      bool
}

// New discovers the connected monitors and builds one surface per
// monitor. Must be called on the main goroutine; the GL contexts it
// creates stay bound to this OS thread.
func New(expandPath func(string) string) (*Daemon, error) {
	runtime.LockOSThread()

	if err := glrenderer.Init(); err != nil {
		return nil, err
	}

	loop := eventloop.New(clockwork.NewRealClock())
	fl, err := filelist.New()
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(viper.GetViper(), expandPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	d := &Daemon{
		loop:       loop,
		loader:     imageloader.New(loop.Wakeup()),
		filelist:   fl,
		cfg:        cfg,
		surfaces:   make(map[string]*surface.Surface),
		contexts:   make(map[string]*glrenderer.Context),
		renderers:  make(map[string]*glrenderer.Renderer),
		expandPath: expandPath,
		debug:      viper.GetBool("debug"),
	}

	monitors := glrenderer.Monitors()
	if len(monitors) == 0 {
		return nil, fmt.Errorf("no monitors found")
	}
	for name, monitor := range monitors {
		if err := d.addSurface(name, monitor); err != nil {
			return nil, fmt.Errorf("surface %s: %w", name, err)
		}
	}

	return d, nil
}

func (d *Daemon) addSurface(name string, monitor *glfw.Monitor) error {
	ctx, width, height, err := glrenderer.NewContext(monitor)
	if err != nil {
		return err
	}

	info := d.cfg.For(name)
	renderer := glrenderer.NewRenderer(info.Easing, info.FadeSpeed, viper.GetInt("framerate_limit"))
	p := picker.New(name, info, d.filelist, d.loader, d.loop.Clock())
	s := surface.New(name, ctx, renderer, p, d.loop.Wakeup(), info)

	if err := s.Resize(width, height, 1); err != nil {
		ctx.Destroy()
		return err
	}

	log.Infof("surface %s: %dx%d, rotating every %v", name, width, height, info.Duration)

	d.surfaces[name] = s
	d.contexts[name] = ctx
	d.renderers[name] = renderer

	if info.Duration > 0 {
		s.AddTimer(d.loop, info.Duration)
	}
	s.QueueDraw()
	return nil
}

// Run blocks until a stop command arrives.
func (d *Daemon) Run() {
	log.Info("Starting wallpaper daemon...")

	d.loop.OnWake(d.flush)

	viper.OnConfigChange(func(fsnotify.Event) {
		d.loop.Post(d.reload)
	})
	viper.WatchConfig()

	d.loop.Run()

	for name, renderer := range d.renderers {
		d.contexts[name].MakeCurrent()
		renderer.Cleanup()
	}
	for _, ctx := range d.contexts {
		ctx.Destroy()
	}
	d.filelist.Close()
	glrenderer.Terminate()
	log.Info("Wallpaper daemon stopped.")
}

// flush runs after every loop dispatch: draw whichever surfaces queued a
// frame, then verify loader bookkeeping when debugging.
func (d *Daemon) flush() {
	glfw.PollEvents()

	now := d.loop.Now()
	for _, s := range d.surfaces {
		if !s.WantsFrame() || !s.Configured() {
			continue
		}
		if err := s.Draw(d.loop, now); err != nil {
			log.Errorf("drawing %s: %v", s.Name, err)
		}
	}

	if d.debug {
		d.loader.CheckLingering()
	}
}

// reload rebuilds the config snapshots and reconciles every surface
// against its new one. Runs on the loop goroutine.
func (d *Daemon) reload() {
	if err := viper.ReadInConfig(); err != nil {
		log.Errorf("re-reading config: %v", err)
		return
	}
	cfg, err := config.Load(viper.GetViper(), d.expandPath)
	if err != nil {
		log.Errorf("reloading config: %v", err)
		return
	}
	d.cfg = cfg

	log.Info("Config changed, reconciling surfaces")
	for name, s := range d.surfaces {
		s.Reconcile(d.loop, cfg.For(name))
	}
}

// rotate advances (or rewinds) the named display, or all of them.
func (d *Daemon) rotate(display string, backwards bool) {
	for name, s := range d.surfaces {
		if display != "" && display != name {
			continue
		}
		if backwards {
			s.Picker.PreviousImage()
		} else {
			s.Picker.NextImage()
		}
		s.QueueDraw()
	}
}

// EnqueueCommand hands an IPC command to the loop goroutine. Safe from
// any goroutine; this is the IPC server's entry point.
func (d *Daemon) EnqueueCommand(cmd ipc.Command) {
	display := ""
	if len(cmd.Args) > 0 {
		display = cmd.Args[0]
	}

	switch cmd.Type {
	case ipc.CommandStop:
		log.Info("Received stop command")
		d.loop.Stop()
	case ipc.CommandNext:
		d.loop.Post(func() { d.rotate(display, false) })
	case ipc.CommandPrevious:
		d.loop.Post(func() { d.rotate(display, true) })
	case ipc.CommandReload:
		d.loop.Post(d.reload)
	default:
		log.Errorf("unknown command: %s", cmd.Type)
	}
}

// Displays reports the current wallpaper and next rotation per surface.
// Blocks briefly while the loop goroutine takes the snapshot.
func (d *Daemon) Displays() map[string]ipc.DisplayStatus {
	reply := make(chan map[string]ipc.DisplayStatus, 1)
	d.loop.Post(func() {
		status := make(map[string]ipc.DisplayStatus, len(d.surfaces))
		for name, s := range d.surfaces {
			ds := ipc.DisplayStatus{
				Wallpaper: s.Picker.CurrentImage(),
			}
			if deadline, ok := d.loop.Deadline(s.Timer()); ok {
				ds.NextRotation = deadline.Format(time.RFC3339)
			}
			status[name] = ds
		}
		reply <- status
	})

	select {
	case status := <-reply:
		return status
	case <-time.After(5 * time.Second):
		log.Error("status snapshot timed out")
		return nil
	}
}
