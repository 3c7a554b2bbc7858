// Package camera finds the front camera among the PipeWire nodes and
// forwards its state changes to the indicator.
package camera

import "cameraled/internal/pipewire"

// Target is the identification predicate for the camera node
type Target struct {
	Role     string
	Location string
	Product  string
}

// DefaultTarget is the front camera of the supported hardware
var DefaultTarget = Target{
	Role:     "Camera",
	Location: "front",
	Product:  "ov5675",
}

// Matches reports whether props describe the target. All three fields must
// be present and equal; anything else is a miss.
func (t Target) Matches(props pipewire.Properties) bool {
	return matchKey(props, pipewire.KeyMediaRole, t.Role) &&
		matchKey(props, pipewire.KeyLibcameraPlace, t.Location) &&
		matchKey(props, pipewire.KeyDeviceProduct, t.Product)
}

func matchKey(props pipewire.Properties, key, want string) bool {
	v, ok := props.Get(key)
	return ok && v == want
}
