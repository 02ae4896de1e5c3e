package inference

import (
	"errors"
	"io"
	"log/slog"
	"testing"
)

// Device state is process-global, so these tests do not run in parallel.

func TestSelectDeviceCPUWhenNotPreferred(t *testing.T) {
	ResetDevice()
	t.Cleanup(ResetDevice)

	probed := false
	got := SelectDevice(false, func() error { probed = true; return nil }, nil)
	if got != DeviceCPU {
		t.Errorf("SelectDevice(false) = %v, want %v", got, DeviceCPU)
	}
	if probed {
		t.Error("probe ran even though the accelerator was not preferred")
	}
}

func TestSelectDeviceAcceleratorProbeSucceeds(t *testing.T) {
	ResetDevice()
	t.Cleanup(ResetDevice)

	got := SelectDevice(true, func() error { return nil }, nil)
	if got != DeviceAccelerator {
		t.Errorf("SelectDevice(true) = %v, want %v", got, DeviceAccelerator)
	}
}

func TestSelectDeviceProbeFailureFallsBack(t *testing.T) {
	ResetDevice()
	t.Cleanup(ResetDevice)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	got := SelectDevice(true, func() error { return errors.New("no driver") }, logger)
	if got != DeviceCPU {
		t.Errorf("SelectDevice with failing probe = %v, want %v", got, DeviceCPU)
	}
}

func TestSelectDeviceCachesAcrossCalls(t *testing.T) {
	ResetDevice()
	t.Cleanup(ResetDevice)

	calls := 0
	probe := func() error { calls++; return nil }

	first := SelectDevice(true, probe, nil)
	second := SelectDevice(true, probe, nil)
	if first != second {
		t.Errorf("cached selection changed: first %v, second %v", first, second)
	}
	if calls != 1 {
		t.Errorf("probe ran %d times, want 1", calls)
	}

	// A failed probe never gets retried once CPU is cached.
	ResetDevice()
	calls = 0
	failing := func() error { calls++; return errors.New("no driver") }
	SelectDevice(true, failing, nil)
	got := SelectDevice(true, failing, nil)
	if got != DeviceCPU {
		t.Errorf("second selection after failure = %v, want %v", got, DeviceCPU)
	}
	if calls != 1 {
		t.Errorf("probe ran %d times after failure, want 1", calls)
	}
}

func TestSelectedDeviceUnresolvedByDefault(t *testing.T) {
	ResetDevice()
	t.Cleanup(ResetDevice)

	if got := SelectedDevice(); got != DeviceUnresolved {
		t.Errorf("SelectedDevice() = %v, want %v", got, DeviceUnresolved)
	}
}

func TestDowngradeToCPU(t *testing.T) {
	ResetDevice()
	t.Cleanup(ResetDevice)

	SelectDevice(true, func() error { return nil }, nil)
	downgradeToCPU()
	if got := SelectedDevice(); got != DeviceCPU {
		t.Errorf("SelectedDevice() after downgrade = %v, want %v", got, DeviceCPU)
	}
}

func TestDeviceString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		device Device
		want   string
	}{
		{DeviceUnresolved, "unresolved"},
		{DeviceAccelerator, "accelerator"},
		{DeviceCPU, "cpu"},
	}
	for _, tt := range tests {
		if got := tt.device.String(); got != tt.want {
			t.Errorf("Device(%d).String() = %q, want %q", tt.device, got, tt.want)
		}
	}
}
