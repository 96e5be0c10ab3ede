package wbproto

// ControlType enumerates the WB control widget types.
type ControlType string

const (
	ControlSwitch     ControlType = "switch"
	ControlRange      ControlType = "range"
	ControlValue      ControlType = "value"
	ControlText       ControlType = "text"
	ControlPushbutton ControlType = "pushbutton"
)

// ControlMeta is the JSON body published (retained) to a control's meta
// topic.
type ControlMeta struct {
	Title    Title       `json:"title"`
	Type     ControlType `json:"type"`
	ReadOnly bool        `json:"readonly"`
	Order    int         `json:"order"`
	Min      *float64    `json:"min,omitempty"`
	Max      *float64    `json:"max,omitempty"`
	Units    string      `json:"units,omitempty"`
}

// Title is the {en: string} shape WB titles are published in. It has no
// bare-string form: a plain JSON string does not unmarshal into it.
type Title struct {
	En string `json:"en"`
}

// DeviceMeta is the JSON body published (retained) to a device's meta
// topic.
type DeviceMeta struct {
	Driver string `json:"driver"`
	Title  Title  `json:"title"`
	Type   string `json:"type,omitempty"`
}

// orderTiers assigns the stable, monotone-by-group ordering described in
// the device runtime spec: power first, then volume, inputs, playback,
// menu/navigation, everything else last.
var orderTiers = map[string]int{
	"power":      1,
	"volume":     10,
	"inputs":     20,
	"apps":       20,
	"playback":   30,
	"menu":       40,
	"navigation": 40,
}

// OrderFor returns a deterministic order value for a command in the given
// group, assigning successive commands within a group increasing order
// numbers via seq (e.g. the command's index within its group).
func OrderFor(group string, seq int) int {
	base, ok := orderTiers[group]
	if !ok {
		base = 80
	}
	return base + seq
}
