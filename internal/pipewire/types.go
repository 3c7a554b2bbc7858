// Package pipewire models the parts of the PipeWire registry the camera
// monitor consumes: globals appearing and disappearing, node info updates
// and fatal core errors. Events are fed in by Monitor (pw-dump) or, in tests,
// by calling the Registry and Core feed methods directly.
//
// None of the types in this package are safe for concurrent use. They are
// owned by the event loop goroutine.
package pipewire

import "strings"

// Object types as reported by pw-dump
const (
	TypeCore     = "PipeWire:Interface:Core"
	TypeClient   = "PipeWire:Interface:Client"
	TypeModule   = "PipeWire:Interface:Module"
	TypeFactory  = "PipeWire:Interface:Factory"
	TypeDevice   = "PipeWire:Interface:Device"
	TypeNode     = "PipeWire:Interface:Node"
	TypePort     = "PipeWire:Interface:Port"
	TypeLink     = "PipeWire:Interface:Link"
	TypeMetadata = "PipeWire:Interface:Metadata"
)

// Well-known property keys
const (
	KeyMediaRole       = "media.role"
	KeyLibcameraPlace  = "api.libcamera.location"
	KeyDeviceProduct   = "device.product.name"
	KeyNodeName        = "node.name"
	KeyNodeDescription = "node.description"
)

// NodeState is the runtime state of a node
type NodeState int

const (
	NodeStateUnknown NodeState = iota
	NodeStateError
	NodeStateCreating
	NodeStateSuspended
	NodeStateIdle
	NodeStateRunning
)

var nodeStateNames = map[NodeState]string{
	NodeStateUnknown:   "Unknown",
	NodeStateError:     "Error",
	NodeStateCreating:  "Creating",
	NodeStateSuspended: "Suspended",
	NodeStateIdle:      "Idle",
	NodeStateRunning:   "Running",
}

func (s NodeState) String() string {
	if name, ok := nodeStateNames[s]; ok {
		return name
	}
	return "Unknown"
}

// ParseNodeState converts the lower-case state names used on the wire
// ("running", "idle", ...). Anything unrecognised is NodeStateUnknown.
func ParseNodeState(s string) NodeState {
	switch strings.ToLower(s) {
	case "error":
		return NodeStateError
	case "creating":
		return NodeStateCreating
	case "suspended":
		return NodeStateSuspended
	case "idle":
		return NodeStateIdle
	case "running":
		return NodeStateRunning
	default:
		return NodeStateUnknown
	}
}

// Properties is a PipeWire property dictionary
type Properties map[string]string

// Get returns the value for key and whether it was present
func (p Properties) Get(key string) (string, bool) {
	if p == nil {
		return "", false
	}
	v, ok := p[key]
	return v, ok
}

// Global is a registry object as announced by the registry
type Global struct {
	ID      uint32
	Type    string
	Version int
	Props   Properties
}

// NodeInfo is the info event of a bound node
type NodeInfo struct {
	ID    uint32
	State NodeState
	Error string
	Props Properties
}

// CoreInfo describes the PipeWire daemon the monitor is attached to
type CoreInfo struct {
	ID      uint32
	Name    string
	Version string
	Props   Properties
}

// Listener is any registered callback set that can be released. Once
// released, none of its callbacks are invoked again.
type Listener interface {
	Release()
}
