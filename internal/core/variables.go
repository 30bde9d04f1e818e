package core

import "github.com/patrickmn/go-cache"

// Variables is the process-wide store modules use to share values between
// commands. Keys are "<module>_<name>"; entries never expire.
type Variables struct {
	c *cache.Cache
}

// NewVariables returns an empty store.
func NewVariables() *Variables {
	return &Variables{c: cache.New(cache.NoExpiration, 0)}
}

func variableKey(module, name string) string {
	return module + "_" + name
}

// Set stores value for module/name.
func (v *Variables) Set(module, name string, value any) {
	v.c.Set(variableKey(module, name), value, cache.NoExpiration)
}

// Get returns the value stored for module/name.
func (v *Variables) Get(module, name string) (any, bool) {
	return v.c.Get(variableKey(module, name))
}

// Increment adds delta to an int variable, creating it at zero, and returns the
// new value. It fails when the stored value is not an int.
func (v *Variables) Increment(module, name string, delta int) (int, error) {
	key := variableKey(module, name)
	// Add only succeeds for a missing key
	_ = v.c.Add(key, 0, cache.NoExpiration)
	return v.c.IncrementInt(key, delta)
}
