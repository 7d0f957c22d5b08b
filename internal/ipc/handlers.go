package ipc

import (
	"net/http"
	"os"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/spf13/viper"

	"github.com/driftpaper/driftpaper"
)

// GET /status
func statusHandler(m ManagerInterface) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSONPretty(http.StatusOK, StatusResponse{
			Status:   "ok",
			Message:  "driftpaper is running",
			Version:  strings.Trim(driftpaper.Version, "\n\r "),
			PID:      os.Getpid(),
			Socket:   SocketPath(),
			Config:   viper.ConfigFileUsed(),
			Displays: m.Displays(),
		}, "  ")
	}
}

// POST /stop
func stopHandler(m ManagerInterface) echo.HandlerFunc {
	return func(c echo.Context) error {
		m.EnqueueCommand(Command{Type: CommandStop})
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}
}

// POST /next?display=DP-1
func nextHandler(m ManagerInterface) echo.HandlerFunc {
	return func(c echo.Context) error {
		m.EnqueueCommand(Command{
			Type: CommandNext,
			Args: displayArgs(c),
		})
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}
}

// POST /previous?display=DP-1
func previousHandler(m ManagerInterface) echo.HandlerFunc {
	return func(c echo.Context) error {
		m.EnqueueCommand(Command{
			Type: CommandPrevious,
			Args: displayArgs(c),
		})
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}
}

// POST /reload
func reloadHandler(m ManagerInterface) echo.HandlerFunc {
	return func(c echo.Context) error {
		m.EnqueueCommand(Command{Type: CommandReload})
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}
}

func displayArgs(c echo.Context) []string {
	if display := c.QueryParam("display"); display != "" {
		return []string{display}
	}
	return nil
}
