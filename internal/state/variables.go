package state

// StateType represents the type of a state variable
type StateType string

const (
	TypeBool   StateType = "bool"
	TypeString StateType = "string"
	TypeNumber StateType = "number"
)

// StateVariable defines metadata for a state variable
type StateVariable struct {
	Key         string      // Go-style variable name (e.g., "cameraTracked")
	Type        StateType   // bool, string, number
	Default     interface{} // Default value
	Description string      // Human-readable meaning, served by the status API
	Computed    bool        // Derived from other variables, never set directly
}

// Keys of the monitor status variables
const (
	KeyCameraTracked  = "cameraTracked"
	KeyCameraNodeID   = "cameraNodeID"
	KeyCameraState    = "cameraState"
	KeyTrackedNodes   = "trackedNodes"
	KeyIndicatorOn    = "indicatorOn"
	KeyIndicatorError = "indicatorError"
	KeyCameraActive   = "isCameraActive"
)

// AllVariables contains every status variable the monitor publishes
var AllVariables = []StateVariable{
	{Key: KeyCameraTracked, Type: TypeBool, Default: false, Description: "A node matching the front camera is latched"},
	{Key: KeyCameraNodeID, Type: TypeNumber, Default: float64(0), Description: "Registry id of the latched camera node"},
	{Key: KeyCameraState, Type: TypeString, Default: "Unknown", Description: "Last observed camera node state"},
	{Key: KeyTrackedNodes, Type: TypeNumber, Default: float64(0), Description: "Node objects currently holding listeners"},
	{Key: KeyIndicatorOn, Type: TypeBool, Default: false, Description: "Last indicator level successfully applied"},
	{Key: KeyIndicatorError, Type: TypeString, Default: "", Description: "Last indicator control failure, empty after a success"},
	{Key: KeyCameraActive, Type: TypeBool, Default: false, Description: "Camera is tracked and running", Computed: true},
}

// VariablesByKey returns a map of variables indexed by key
func VariablesByKey() map[string]StateVariable {
	result := make(map[string]StateVariable, len(AllVariables))
	for _, v := range AllVariables {
		result[v.Key] = v
	}
	return result
}
