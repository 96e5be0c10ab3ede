package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Room mirrors the Room Manager's data model (recovered from
// domain/rooms/service.py): a named, localised grouping of devices with
// an optional default scenario.
type Room struct {
	RoomID          string            `json:"room_id"`
	Names           map[string]string `json:"names"`
	Description     string            `json:"description,omitempty"`
	Devices         []string          `json:"devices"`
	DefaultScenario string            `json:"default_scenario,omitempty"`
}

// Rooms is the loaded room directory, keyed by room_id. It implements
// scenario.RoomLookup directly.
type Rooms map[string]Room

// LoadRooms parses a single rooms.json mapping room_id -> Room.
func LoadRooms(path string) (Rooms, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read rooms file %s: %w", path, err)
	}
	var rooms Rooms
	if err := json.Unmarshal(data, &rooms); err != nil {
		return nil, fmt.Errorf("config: parse rooms file %s: %w", path, err)
	}
	for id, r := range rooms {
		if len(r.Names) == 0 {
			return nil, fmt.Errorf("config: room %s: names must have at least one locale", id)
		}
	}
	return rooms, nil
}

// DevicesInRoom implements scenario.RoomLookup.
func (r Rooms) DevicesInRoom(roomID string) ([]string, bool) {
	room, ok := r[roomID]
	if !ok {
		return nil, false
	}
	return room.Devices, true
}
