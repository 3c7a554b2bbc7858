package state

import "go.uber.org/zap"

// SetupComputedState initializes computed state variables and sets up
// subscriptions to automatically recompute them when dependencies change.
//
// Computed state variables are derived from other state variables:
// - isCameraActive = cameraTracked && cameraState == "Running"
func (m *Manager) SetupComputedState() ([]Subscription, error) {
	if err := m.recomputeCameraActive(); err != nil {
		return nil, err
	}

	var subs []Subscription
	for _, key := range []string{KeyCameraTracked, KeyCameraState} {
		sub, err := m.Subscribe(key, func(key string, oldValue, newValue interface{}) {
			if err := m.recomputeCameraActive(); err != nil {
				m.logger.Error("Failed to recompute isCameraActive",
					zap.String("trigger", key),
					zap.Error(err))
			}
		})
		if err != nil {
			for _, s := range subs {
				s.Unsubscribe()
			}
			return nil, err
		}
		subs = append(subs, sub)
	}

	m.logger.Debug("Computed state initialized",
		zap.Strings("variables", []string{KeyCameraActive}))
	return subs, nil
}

func (m *Manager) recomputeCameraActive() error {
	tracked, err := m.GetBool(KeyCameraTracked)
	if err != nil {
		return err
	}
	cameraState, err := m.GetString(KeyCameraState)
	if err != nil {
		return err
	}

	return m.set(KeyCameraActive, TypeBool, tracked && cameraState == "Running", true)
}
