package inference

import (
	"log/slog"
	"sync"
)

// Device identifies the execution target the model session runs on.
type Device int

const (
	// DeviceUnresolved means no selection has been made yet.
	DeviceUnresolved Device = iota
	// DeviceAccelerator is the dedicated inference accelerator.
	DeviceAccelerator
	// DeviceCPU is general-purpose compute.
	DeviceCPU
)

// String returns a human-readable device name.
func (d Device) String() string {
	switch d {
	case DeviceAccelerator:
		return "accelerator"
	case DeviceCPU:
		return "cpu"
	default:
		return "unresolved"
	}
}

// deviceState caches the selected execution device for the lifetime of the
// process. Selection happens once; a failed accelerator initialization
// downgrades the process to CPU and no later run re-probes the accelerator.
type deviceState struct {
	mu     sync.Mutex
	device Device
}

var processDevice deviceState

// SelectDevice resolves the execution device, caching the result
// process-wide. When preferAccelerator is set and no selection has been
// made, probe is invoked to initialize the accelerator; a probe failure
// selects CPU permanently and is reported through logger rather than as an
// error. Subsequent calls return the cached selection without probing.
func SelectDevice(preferAccelerator bool, probe func() error, logger *slog.Logger) Device {
	processDevice.mu.Lock()
	defer processDevice.mu.Unlock()

	if processDevice.device != DeviceUnresolved {
		return processDevice.device
	}

	if !preferAccelerator {
		processDevice.device = DeviceCPU
		return processDevice.device
	}

	if err := probe(); err != nil {
		if logger != nil {
			logger.Warn("accelerator initialization failed, falling back to cpu",
				slog.String("error", err.Error()))
		}
		processDevice.device = DeviceCPU
		return processDevice.device
	}

	processDevice.device = DeviceAccelerator
	if logger != nil {
		logger.Info("inference device selected", slog.String("device", processDevice.device.String()))
	}
	return processDevice.device
}

// SelectedDevice returns the cached selection, or DeviceUnresolved when
// SelectDevice has not run yet.
func SelectedDevice() Device {
	processDevice.mu.Lock()
	defer processDevice.mu.Unlock()
	return processDevice.device
}

// ResetDevice clears the cached selection. It exists for tests.
func ResetDevice() {
	processDevice.mu.Lock()
	defer processDevice.mu.Unlock()
	processDevice.device = DeviceUnresolved
}
