package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dreschagin/aip-monitor/internal/domain/service"
	"github.com/dreschagin/aip-monitor/internal/domain/valueobject"
	"github.com/dreschagin/aip-monitor/pkg/logger"
)

type mockLibrary struct {
	handles []DeviceHandle
	err     error
}

func (m *mockLibrary) DeviceList(ctx context.Context) ([]DeviceHandle, error) {
	return m.handles, m.err
}

type mockHandle struct {
	info  map[string]any
	err   error
	calls int
}

func (m *mockHandle) Info(ctx context.Context) (map[string]any, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.info, nil
}

func TestSDKSourceEnumerationFailure(t *testing.T) {
	src := NewSDKSource(context.Background(), &mockLibrary{err: errors.New("driver not loaded")}, logger.NewNop())

	if len(src.Devices()) != 0 {
		t.Fatalf("expected no devices, got %v", src.Devices())
	}
	if readings := src.Collect(context.Background()); len(readings) != 0 {
		t.Fatalf("expected empty cycle, got %v", readings)
	}
}

func TestSDKSourceIdentifiesDevices(t *testing.T) {
	handle := &mockHandle{info: map[string]any{
		"uuid":         "U-0",
		"bus":          "35:00.0",
		"serial":       "S-0",
		"index":        4,
		"memory_total": 131072,
	}}
	src := NewSDKSource(context.Background(), &mockLibrary{handles: []DeviceHandle{handle}}, logger.NewNop())

	devices := src.Devices()
	if len(devices) != 1 {
		t.Fatalf("expected 1 device, got %d", len(devices))
	}
	d := devices[0]
	if d.Index != 4 || d.UUID != "U-0" || d.BusAddress != "35:00.0" || d.Serial != "S-0" || d.MemoryTotal != 131072 {
		t.Errorf("unexpected device %+v", d)
	}
}

func TestSDKSourceMissingKeysFallBack(t *testing.T) {
	handle := &mockHandle{info: map[string]any{
		"uuid":        "U-0",
		"temperature": "52C",
	}}
	src := NewSDKSource(context.Background(), &mockLibrary{handles: []DeviceHandle{handle}}, logger.NewNop())

	readings := src.Collect(context.Background())
	if len(readings) != 1 {
		t.Fatalf("expected 1 reading, got %d", len(readings))
	}

	rec := service.Normalize(readings[0])
	if rec.Temp != 52 || rec.UUID != "U-0" {
		t.Errorf("unexpected record %+v", rec)
	}
	if rec.Power != -1 || rec.MemTotal != -1 || rec.Serial != "unknown" || rec.Bus != "unknown" {
		t.Errorf("missing keys should fall back to sentinels, got %+v", rec)
	}
	if rec.Timestamp == "unknown" {
		t.Error("timestamp should be stamped by the source")
	}
}

func TestSDKSourceDeviceFailureIsIsolated(t *testing.T) {
	good := &mockHandle{info: map[string]any{"uuid": "U-0", "power": 300}}
	bad := &mockHandle{info: map[string]any{"uuid": "U-1"}}
	src := NewSDKSource(context.Background(), &mockLibrary{handles: []DeviceHandle{good, bad}}, logger.NewNop())

	bad.err = errors.New("ioctl failed")
	readings := src.Collect(context.Background())
	if len(readings) != 2 {
		t.Fatalf("expected 2 readings, got %d", len(readings))
	}

	if service.Normalize(readings[0]).Power != 300 {
		t.Errorf("healthy device should be unaffected, got %v", readings[0])
	}
	for _, key := range valueobject.NumericKeys {
		if readings[1][key] != valueobject.Sentinel {
			t.Errorf("failed device key %s: expected sentinel, got %v", key, readings[1][key])
		}
	}

	failed := service.Normalize(readings[1])
	if failed.UUID != "U-1" || failed.Index != 1 {
		t.Errorf("failed device should keep its identity, got %+v", failed)
	}
	if _, err := time.Parse(valueobject.TimestampLayout, failed.Timestamp); err != nil {
		t.Errorf("failed device should be stamped with the poll time, got %q", failed.Timestamp)
	}
}

func writeAttr(t *testing.T, path, value string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(value+"\n"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestSysfsLibrary(t *testing.T) {
	root := t.TempDir()

	dev0 := filepath.Join(root, "accel0", "device")
	writeAttr(t, filepath.Join(dev0, "pci_addr"), "0000:35:00.0")
	writeAttr(t, filepath.Join(dev0, "serial_number"), "AO22049929")
	writeAttr(t, filepath.Join(dev0, "hwmon", "hwmon3", "temp1_input"), "41000")
	writeAttr(t, filepath.Join(dev0, "hwmon", "hwmon3", "power1_input"), "214500000")

	dev1 := filepath.Join(root, "accel1", "device")
	writeAttr(t, filepath.Join(dev1, "pci_addr"), "0000:9a:00.0")

	// not an accelerator node
	writeAttr(t, filepath.Join(root, "accel_ctl", "device", "pci_addr"), "0000:00:00.0")

	lib := NewSysfsLibrary(root)
	handles, err := lib.DeviceList(context.Background())
	if err != nil {
		t.Fatalf("DeviceList() error = %v", err)
	}
	if len(handles) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(handles))
	}

	info, err := handles[0].Info(context.Background())
	if err != nil {
		t.Fatalf("Info() error = %v", err)
	}
	rec := service.Normalize(info)
	if rec.Bus != "35:00.0" || rec.Serial != "AO22049929" || rec.Index != 0 {
		t.Errorf("unexpected identity %+v", rec)
	}
	if rec.Temp != 41 || rec.Power != 214.5 {
		t.Errorf("unexpected hwmon values temp=%v power=%v", rec.Temp, rec.Power)
	}
	if rec.UUID != "unknown" || rec.UtilAIP != -1 {
		t.Errorf("absent attributes should fall back, got %+v", rec)
	}

	info, err = handles[1].Info(context.Background())
	if err != nil {
		t.Fatalf("Info() error = %v", err)
	}
	if rec := service.Normalize(info); rec.Index != 1 || rec.Temp != -1 {
		t.Errorf("device without hwmon: unexpected record %+v", rec)
	}

	if err := os.RemoveAll(filepath.Join(root, "accel1")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := handles[1].Info(context.Background()); err == nil {
		t.Error("expected error for vanished device")
	}
}

func TestSysfsLibraryMissingRoot(t *testing.T) {
	lib := NewSysfsLibrary(filepath.Join(t.TempDir(), "absent"))
	if _, err := lib.DeviceList(context.Background()); err == nil {
		t.Fatal("expected error for missing root")
	}

	src := NewSDKSource(context.Background(), lib, logger.NewNop())
	if len(src.Devices()) != 0 {
		t.Errorf("expected no devices, got %v", src.Devices())
	}
}
