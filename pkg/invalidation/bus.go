package invalidation

import (
	"fmt"

	"github.com/nive-cms/userdb/pkg/interfaces"
)

// New creates the bus selected by cfg.Driver. The none driver returns a
// nil bus and no error.
func New(cfg Config, logger interfaces.Logger) (interfaces.InvalidationBus, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Driver {
	case "", DriverNone:
		return nil, nil
	case DriverMemory:
		return NewMemoryBus(NewHub(), logger), nil
	case DriverRedis:
		bus, err := NewRedisBus(cfg, logger)
		if err != nil {
			return nil, err
		}
		return bus, nil
	case DriverNATS:
		bus, err := NewNATSBus(cfg, logger)
		if err != nil {
			return nil, err
		}
		return bus, nil
	default:
		return nil, fmt.Errorf("unknown invalidation driver: %s", cfg.Driver)
	}
}
