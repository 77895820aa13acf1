package factory

import (
	"github.com/mailster/scenario/internal/adapters/cache"
)

// Caches bundles the two process-wide memoization tables so wiring can tell
// them apart: the long-lived filter result cache and the short-lived robot
// parameter snapshot cache.
type Caches struct {
	Filter      *cache.TTLCache
	RobotParams *cache.TTLCache
}

// NewCaches builds both caches from configuration.
func NewCaches(f *SearchFactory) (*Caches, error) {
	filter, err := f.CreateFilterCache()
	if err != nil {
		return nil, err
	}
	robotParams, err := f.CreateRobotParamCache()
	if err != nil {
		filter.Stop()
		return nil, err
	}
	return &Caches{Filter: filter, RobotParams: robotParams}, nil
}

// Stop stops both cache cleanup tasks.
func (c *Caches) Stop() {
	c.Filter.Stop()
	c.RobotParams.Stop()
}
