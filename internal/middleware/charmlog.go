// Package middleware adapts charmbracelet/log to echo's middleware
// chain, so socket requests show up in the daemon log with the same
// formatting as everything else.
package middleware

import (
	"time"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"
)

func CharmLog() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			log.Debugf("%s %s -> %d (%s)",
				c.Request().Method,
				c.Request().RequestURI,
				c.Response().Status,
				time.Since(start))

			return err
		}
	}
}
