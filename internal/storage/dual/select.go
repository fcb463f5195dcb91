package dual

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/driverbook/tripwage/internal/storage"
)

// Recognized backend selections.
const (
	BackendFirestore = "firestore"
	BackendPostgres  = "postgres"
	BackendDual      = "dual"
)

var ErrNoBackend = errors.New("no storage backend could be initialized")

// Select resolves the process-wide store set from the configured selection.
// Either backend pointer may be nil when its initialization failed; a single
// selection with a nil backend is fatal, and dual mode is fatal only when
// both are nil. Dual mode with one backend down degrades to single-backend
// operation on the survivor.
func Select(selection, readPrimary string, fs, pg *storage.Stores, log *slog.Logger) (storage.Stores, error) {
	switch selection {
	case BackendFirestore:
		if fs == nil {
			return storage.Stores{}, ErrNoBackend
		}
		return *fs, nil
	case BackendPostgres:
		if pg == nil {
			return storage.Stores{}, ErrNoBackend
		}
		return *pg, nil
	case BackendDual:
		switch {
		case fs == nil && pg == nil:
			return storage.Stores{}, ErrNoBackend
		case fs == nil:
			log.Warn("dual mode requested but firestore backend is down, running on postgres only")
			return *pg, nil
		case pg == nil:
			log.Warn("dual mode requested but postgres backend is down, running on firestore only")
			return *fs, nil
		}

		primary, secondary := pg, fs
		if readPrimary == BackendFirestore {
			primary, secondary = fs, pg
		}
		return storage.Stores{
			Orders:    NewOrders(primary.Orders, secondary.Orders, log),
			WorkTimes: NewWorkTimes(primary.WorkTimes, secondary.WorkTimes, log),
			Users:     NewUsers(primary.Users, secondary.Users, log),
		}, nil
	default:
		return storage.Stores{}, fmt.Errorf("unknown backend selection %q", selection)
	}
}
