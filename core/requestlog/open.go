package requestlog

import (
	"fmt"
	"log/slog"

	"github.com/siherrmann/handbot/database"
	"github.com/siherrmann/handbot/helper"
)

// Open creates the log selected by config.Backend.
// The postgres backend needs db, the others ignore it.
func Open(config helper.RequestLogConfiguration, db *helper.Database, logger *slog.Logger) (Log, error) {
	switch config.Backend {
	case "", "file":
		return OpenFileLog(config.Path, logger)
	case "badger":
		return OpenBadgerLog(config.Path, logger)
	case "postgres":
		if db == nil {
			return nil, fmt.Errorf("request log backend postgres requires a database")
		}
		handler, err := database.NewRequestLogDBHandler(db, false)
		if err != nil {
			return nil, helper.NewError("request log handler", err)
		}
		return NewPostgresLog(handler), nil
	default:
		return nil, fmt.Errorf("unknown request log backend %q", config.Backend)
	}
}
