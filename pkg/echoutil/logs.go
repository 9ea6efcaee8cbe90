package echoutil

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

// LogHandlerFunc is a middleware logging each request and its response.
func LogHandlerFunc(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		meth := c.Request().Method
		path := c.Request().URL
		rid := c.Response().Header().Get(echo.HeaderXRequestID)
		begin := time.Now()
		c.Logger().Infof("< request [%s] @[%s] %s %s", rid, begin, meth, path)

		err := next(c)

		end := time.Now()
		c.Logger().Infof(
			"> response [%s] status = %d (for %s %s) in %v / error = %+v",
			rid, c.Response().Status, meth, path, end.Sub(begin), err,
		)
		return err
	}
}

// SetLevel sets level of the echo logger by name.
//
// Names are debug, info, warn, error and off. Others are taken as warn.
func SetLevel(e *echo.Echo, loglevel string) {
	switch strings.ToLower(loglevel) {
	case "debug":
		e.Logger.SetLevel(log.DEBUG)
	case "info":
		e.Logger.SetLevel(log.INFO)
	case "warn", "":
		e.Logger.SetLevel(log.WARN)
	case "error":
		e.Logger.SetLevel(log.ERROR)
	case "off":
		e.Logger.SetLevel(log.OFF)
	default:
		e.Logger.SetLevel(log.WARN)
		e.Logger.Warnf("unknown loglevel: %s . fall-backed to warn", loglevel)
	}
}
