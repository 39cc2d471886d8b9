package device

import (
	"fmt"
	"sync"
)

// Registry is the ordered set of monitored devices.
//
// Entries are fixed at construction; values are updated in place by Apply
// and Set. Lookups and snapshots return copies.
//
// All public methods are thread-safe.
type Registry struct {
	devices []*Device
	index   map[string]int
	mu      sync.RWMutex
}

// NewRegistry builds a registry from device definitions, preserving order.
// Addresses must be unique.
func NewRegistry(devices []Device) (*Registry, error) {
	r := &Registry{
		devices: make([]*Device, 0, len(devices)),
		index:   make(map[string]int, len(devices)),
	}

	for _, d := range devices {
		if err := ValidateDevice(d); err != nil {
			return nil, err
		}
		if _, dup := r.index[d.Address]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDeviceExists, d.Address)
		}
		c := d.Clone()
		if c.Name == "" {
			c.Name = c.Address
		}
		r.index[c.Address] = len(r.devices)
		r.devices = append(r.devices, &c)
	}

	return r, nil
}

// Len returns the number of devices.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// Lookup returns a copy of the device with the given address.
func (r *Registry) Lookup(address string) (Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[address]
	if !ok {
		return Device{}, false
	}
	return r.devices[i].Clone(), true
}

// Contains reports whether address is whitelisted.
func (r *Registry) Contains(address string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.index[address]
	return ok
}

// At returns a copy of the device at position i in configuration order.
func (r *Registry) At(i int) (Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i < 0 || i >= len(r.devices) {
		return Device{}, false
	}
	return r.devices[i].Clone(), true
}

// Snapshot returns copies of all devices in configuration order.
func (r *Registry) Snapshot() []Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Device, len(r.devices))
	for i, d := range r.devices {
		out[i] = d.Clone()
	}
	return out
}

// Addresses returns all addresses in configuration order.
func (r *Registry) Addresses() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.devices))
	for i, d := range r.devices {
		out[i] = d.Address
	}
	return out
}

// Apply stores freshly read values and returns copies of the devices whose
// value changed, in configuration order. Addresses missing from values keep
// their previous value; unknown addresses are ignored.
func (r *Registry) Apply(values map[string]int) []Device {
	r.mu.Lock()
	defer r.mu.Unlock()

	var changed []Device
	for _, d := range r.devices {
		v, ok := values[d.Address]
		if !ok {
			continue
		}
		if d.Value != v {
			d.Value = v
			changed = append(changed, d.Clone())
		}
	}
	return changed
}

// Set stores one value and returns the updated device.
func (r *Registry) Set(address string, value int) (Device, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.index[address]
	if !ok {
		return Device{}, false, fmt.Errorf("%w: %s", ErrDeviceNotFound, address)
	}
	d := r.devices[i]
	changed := d.Value != value
	d.Value = value
	return d.Clone(), changed, nil
}

// CacheTopics precomputes each device's publish topic for a bus.
func (r *Registry) CacheTopics(bus string, topic func(address string) string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range r.devices {
		if d.Topics == nil {
			d.Topics = make(map[string]string)
		}
		d.Topics[bus] = topic(d.Address)
	}
}
