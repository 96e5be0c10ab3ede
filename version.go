// Package otto identifies the gateway build; cmd/bridge reports this
// version through GET /system.
package otto

import "fmt"

var Version = "0.1.0"

func VersionJSON() []byte {
	return []byte(fmt.Sprintf(`{"version": "%s"}`, Version))
}
