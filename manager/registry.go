// Package manager implements the Device Manager (spec component F): the
// registry of device instances, inbound topic routing, and persistence
// scheduling.
package manager

import (
	"fmt"
	"sync"

	"github.com/rustyeddy/otto/device"
)

// Constructor builds a concrete DeviceDriver from its static config. Deps
// bundles the collaborators every driver needs without drivers importing
// manager (spec §9's no-back-pointer rule).
type Constructor func(cfg device.Config, deps Deps) (device.DeviceDriver, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Constructor{}
)

// Register binds a device_class name to its constructor. Reserved/abstract
// names ("", "base") are rejected, matching the Python original's
// class_loader.py abstract-class guard.
func Register(name string, ctor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if name == "" || name == "base" {
		panic(fmt.Sprintf("manager: cannot register reserved device class %q", name))
	}
	registry[name] = ctor
}

// Build constructs a driver for the named device class, or an error if no
// constructor was registered under that name.
func Build(class string, cfg device.Config, deps Deps) (device.DeviceDriver, error) {
	registryMu.RLock()
	ctor, ok := registry[class]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("manager: unknown device class %q", class)
	}
	return ctor(cfg, deps)
}
