package testutil

import "cameraled/internal/pipewire"

// CameraProps returns node properties for a libcamera node
func CameraProps(role, location, product string) pipewire.Properties {
	return pipewire.Properties{
		pipewire.KeyMediaRole:      role,
		pipewire.KeyLibcameraPlace: location,
		pipewire.KeyDeviceProduct:  product,
		pipewire.KeyNodeName:       "libcamera_input." + location,
	}
}

// FrontCamera returns the properties of the camera the monitor looks for
func FrontCamera() pipewire.Properties {
	return CameraProps("Camera", "front", "ov5675")
}

// AppearNode announces a node global and delivers its first info event
func AppearNode(r *pipewire.Registry, id uint32, props pipewire.Properties, s pipewire.NodeState) {
	r.Announce(pipewire.Global{ID: id, Type: pipewire.TypeNode, Version: 3, Props: props})
	r.Update(pipewire.NodeInfo{ID: id, State: s, Props: props})
}

// SetNodeState delivers an info event carrying only a state change
func SetNodeState(r *pipewire.Registry, id uint32, props pipewire.Properties, s pipewire.NodeState) {
	r.Update(pipewire.NodeInfo{ID: id, State: s, Props: props})
}
