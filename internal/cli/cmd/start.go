package cmd

import (
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	godaemon "github.com/sevlyar/go-daemon"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/driftpaper/driftpaper/internal/cli/cmd/utils"
	"github.com/driftpaper/driftpaper/internal/daemon"
	"github.com/driftpaper/driftpaper/internal/ipc"
)

const backgroundEnv = "DRIFTPAPER_BACKGROUND"

func NewStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the driftpaper daemon",
		Run: func(cmd *cobra.Command, args []string) {
			StartManager()
		},
	}
}

// StartManager runs the daemon in the foreground, or re-execs it into
// the background when requested.
func StartManager() {
	if viper.GetBool("background") && os.Getenv(backgroundEnv) != "1" {
		daemonize()
		return
	}

	if os.Getenv(backgroundEnv) == "1" {
		setupRotatingLogger()
	}

	log.Infof("StartManager() started in PID: %d", os.Getpid())

	if _, err := ipc.SendStatus(); err == nil {
		log.Infof("driftpaper is already running, exiting")
		os.Exit(0)
	}

	d, err := daemon.New(utils.CanonicalPath)
	if err != nil {
		log.Fatalf("Failed to start daemon: %v", err)
	}

	go func() {
		log.Infof("Starting socket server")
		ipc.Start(d)
	}()

	d.Run()

	os.Remove(ipc.SocketPath())
	log.Infof("driftpaper exited")
}

func daemonize() {
	ctx := &godaemon.Context{
		PidFileName: filepath.Join(stateDir(), "driftpaper.pid"),
		PidFilePerm: 0644,
		Env:         append(os.Environ(), backgroundEnv+"=1"),
	}

	child, err := ctx.Reborn()
	if err != nil {
		log.Fatalf("Failed to daemonize: %v", err)
	}
	if child != nil {
		log.Infof("driftpaper started in background, PID: %d", child.Pid)
		return
	}
	defer ctx.Release()

	StartManager()
}

func stateDir() string {
	home := os.Getenv("HOME")
	dir := filepath.Join(home, ".local", "share", "driftpaper")
	os.MkdirAll(dir, 0755)
	return dir
}

func setupRotatingLogger() {
	logPath := filepath.Join(stateDir(), "driftpaper.log")

	writer, err := rotatelogs.New(
		logPath+".%Y%m%d%H%M",
		rotatelogs.WithLinkName(logPath),
		rotatelogs.WithMaxAge(7*24*time.Hour),
		rotatelogs.WithRotationSize(10*1024*1024),
		rotatelogs.WithRotationTime(24*time.Hour),
	)
	if err != nil {
		log.Fatalf("failed to configure log rotation: %v", err)
	}

	log.SetOutput(writer)
	log.SetLevel(log.InfoLevel)
}
