package refresh

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// Gate lets exactly one caller through per key within the retention window.
// All board views of a property share one gate so an escalation is alerted
// once no matter how many staff are watching.
type Gate struct {
	c *cache.Cache
}

func NewGate(retention time.Duration) *Gate {
	return &Gate{c: cache.New(retention, retention)}
}

// First reports whether key has not been seen before.
func (g *Gate) First(key string) bool {
	return g.c.Add(key, struct{}{}, cache.DefaultExpiration) == nil
}
