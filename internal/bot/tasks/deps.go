// Package tasks implements the scheduled background tasks of the bot:
// pending-slot purging, dedup pruning, and database maintenance.
package tasks

import (
	"log/slog"

	"github.com/nutrizap/nutrizap/internal/config"
	"github.com/nutrizap/nutrizap/internal/database"
)

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger *slog.Logger
	Store  database.Store
	Config *config.Config
}
