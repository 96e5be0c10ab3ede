// Package config loads the gateway's on-disk JSON configuration: device
// configs, scenario definitions and the room directory. Per spec's
// Non-goal, JSON is the only supported format — no viper, no env
// overlays.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rustyeddy/otto/device"
)

// DeviceFile is the on-disk shape of one device config file: device_id,
// device_class, config_class, commands, plus a class-specific block left
// as raw JSON for the constructor to parse.
type DeviceFile struct {
	DeviceID     string                              `json:"device_id"`
	DeviceName   string                              `json:"device_name"`
	DeviceClass  string                              `json:"device_class"`
	ConfigClass  string                              `json:"config_class,omitempty"`
	Virtual      bool                                `json:"virtual_device"`
	Commands     map[string]device.CommandDef        `json:"commands"`
	WBControls   map[string]device.WBControlOverride `json:"wb_controls,omitempty"`
	StateMapping map[string][]string                `json:"wb_state_mappings,omitempty"`
	Class        json.RawMessage                     `json:"config,omitempty"`
}

// ToDeviceConfig builds the device.Config the runtime uses from a loaded
// file; the class-specific Class blob is left for the registered
// constructor to unmarshal itself.
func (f DeviceFile) ToDeviceConfig() device.Config {
	return device.Config{
		DeviceID: f.DeviceID, DeviceName: f.DeviceName, DeviceClass: f.DeviceClass,
		Virtual: f.Virtual, Commands: f.Commands,
		WBControls: f.WBControls, StateMapping: f.StateMapping,
		Class: f.Class,
	}
}

// LoadDevices reads every *.json file in dir as a DeviceFile.
// Per-file parse errors are collected, not fatal to the rest of the
// directory.
func LoadDevices(dir string) ([]DeviceFile, []error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, []error{fmt.Errorf("config: read device dir %s: %w", dir, err)}
	}

	var files []DeviceFile
	var errs []error
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: read %s: %w", path, err))
			continue
		}
		var f DeviceFile
		if err := json.Unmarshal(data, &f); err != nil {
			errs = append(errs, fmt.Errorf("config: parse %s: %w", path, err))
			continue
		}
		if f.DeviceID == "" || f.DeviceClass == "" {
			errs = append(errs, fmt.Errorf("config: %s: missing device_id or device_class", path))
			continue
		}
		files = append(files, f)
	}
	return files, errs
}
