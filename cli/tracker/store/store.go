package store

import (
	"errors"

	"github.com/dispatchd/fleettrack/cli/tracker/store/mysql"
	"github.com/dispatchd/fleettrack/cli/tracker/store/postgresql"
	"github.com/dispatchd/fleettrack/cli/tracker/types"
)

var ErrInvalidStore = errors.New("vehicle store not found")
var ErrUnknownStore = errors.New("vehicle store isn't support yet")
var ErrAmbiguousStore = errors.New("more than one vehicle store configured")

// Store is the durable vehicle record store. The tracking engine only ever
// touches the location sub-fields; everything else on the vehicle document is
// owned elsewhere.
type Store interface {
	// Init opens the connection using the backend's config section.
	Init(map[string]string) error

	// UpdateLocation upserts the location fields for a vehicle. Only the set
	// fields of the update appear in the statement.
	UpdateLocation(id string, upd types.LocationUpdate) error

	// ListActive returns every vehicle whose status is not idle, with its
	// last known location. Used once to bootstrap the simulator.
	ListActive() ([]types.Vehicle, error)

	// Close closes the connection.
	Close() error
}

// New builds the store from config sections keyed by backend name. Exactly
// one section is expected.
func New(storages map[string]map[string]string) (Store, error) {
	if len(storages) == 0 {
		return nil, ErrInvalidStore
	}
	if len(storages) > 1 {
		return nil, ErrAmbiguousStore
	}

	for name, params := range storages {
		var s Store
		switch name {
		case "postgresql":
			s = &postgresql.Store{}
		case "mysql":
			s = &mysql.Store{}
		default:
			return nil, ErrUnknownStore
		}

		if err := s.Init(params); err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, ErrInvalidStore
}
