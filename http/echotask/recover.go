package echotask

import (
	"log/slog"

	"github.com/labstack/echo/v4"

	"github.com/datapipe-labs/dp-go-common/calm"
	"github.com/datapipe-labs/dp-go-common/log"
	"github.com/datapipe-labs/dp-go-common/xerrors/errclass"
)

// Recover turns handler panics into logged 500 responses rather than letting
// them take down the server.
func Recover(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := calm.Unpanic(func() error {
				return next(c)
			})
			switch errclass.GetClass(err) {
			case errclass.Nil:
				return nil
			case errclass.Panic:
				logger.Error("middleware recovered from panic", log.ErrAttr(err))
				c.Error(err)
				return nil
			default:
				c.Error(err)
				return err
			}
		}
	}
}
