package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/plcbridge/internal/device"
	"github.com/nerrad567/plcbridge/internal/infrastructure/config"
	"github.com/nerrad567/plcbridge/internal/plc"
)

// offlineConfig disables every bus and points the controller at a port
// nothing listens on.
const offlineConfig = `
plc:
  host: "127.0.0.1"
  port: 1
  station_number: 1
  timeout_ms: 200
devices:
  - name: "Data 1"
    address: "D0"
    type: "Word"
  - name: "Bit 1"
    address: "M0"
    type: "Bit"
zeromq:
  enabled: false
mqtt:
  enabled: false
barcode:
  enabled: false
database:
  enabled: false
influxdb:
  enabled: false
logging:
  level: error
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

// TestRun_InvalidConfig verifies run fails when the config path is unreadable.
func TestRun_InvalidConfig(t *testing.T) {
	// A directory exists but cannot be read as a file.
	t.Setenv("PLCBRIDGE_CONFIG", t.TempDir())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with an unreadable config path")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("run() error = %v, want loading config error", err)
	}
}

// TestRun_ValidationFailure verifies run fails when the controller host is empty.
func TestRun_ValidationFailure(t *testing.T) {
	cfg := strings.Replace(offlineConfig, `host: "127.0.0.1"`, `host: ""`, 1)
	t.Setenv("PLCBRIDGE_CONFIG", writeConfig(t, cfg))
	t.Setenv("PLCBRIDGE_PLC_HOST", "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail validation")
	}
	if !strings.Contains(err.Error(), "plc.host is required") {
		t.Errorf("run() error = %v, want plc.host validation error", err)
	}
}

// TestRun_BadAddressArea verifies an unknown register area is fatal.
func TestRun_BadAddressArea(t *testing.T) {
	cfg := strings.Replace(offlineConfig, "  timeout_ms: 200\n",
		"  timeout_ms: 200\n  addresses:\n    D:\n      area: bogus\n      base: 0\n", 1)
	t.Setenv("PLCBRIDGE_CONFIG", writeConfig(t, cfg))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil || !strings.Contains(err.Error(), "building address map") {
		t.Errorf("run() error = %v, want address map error", err)
	}
}

// TestRun_ShutdownWithoutController verifies run starts with every bus
// disabled and an unreachable controller, then exits cleanly on cancel.
func TestRun_ShutdownWithoutController(t *testing.T) {
	if testing.Short() {
		t.Skip("dials a local port")
	}
	t.Setenv("PLCBRIDGE_CONFIG", writeConfig(t, offlineConfig))

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run() error = %v, want nil on shutdown", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("run() did not return after context cancellation")
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("PLCBRIDGE_CONFIG", "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv("PLCBRIDGE_CONFIG", "/etc/plcbridge/config.yaml")
	if got := getConfigPath(); got != "/etc/plcbridge/config.yaml" {
		t.Errorf("getConfigPath() = %q", got)
	}
}

func TestAddressMap(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]config.AddressMapping
		code      string
		want      plc.Mapping
		wantErr   bool
	}{
		{
			name: "defaults kept",
			code: "D",
			want: plc.DefaultAddressMap()["D"],
		},
		{
			name:      "override replaces default",
			overrides: map[string]config.AddressMapping{"D": {Area: "input_register", Base: 100}},
			code:      "D",
			want:      plc.Mapping{Area: plc.AreaInputRegister, Base: 100},
		},
		{
			name:      "new code added",
			overrides: map[string]config.AddressMapping{"SM": {Area: "coil", Base: 40000}},
			code:      "SM",
			want:      plc.Mapping{Area: plc.AreaCoil, Base: 40000},
		},
		{
			name:      "hex flag carried",
			overrides: map[string]config.AddressMapping{"Y": {Area: "coil", Base: 512, Hex: true}},
			code:      "Y",
			want:      plc.Mapping{Area: plc.AreaCoil, Base: 512, Hex: true},
		},
		{
			name:      "unknown area",
			overrides: map[string]config.AddressMapping{"D": {Area: "bogus"}},
			wantErr:   true,
		},
		{
			name:      "base out of range",
			overrides: map[string]config.AddressMapping{"D": {Area: "coil", Base: 70000}},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := addressMap(tt.overrides)
			if tt.wantErr {
				if err == nil {
					t.Fatal("addressMap() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("addressMap() error = %v", err)
			}
			if got := m[tt.code]; got != tt.want {
				t.Errorf("m[%q] = %+v, want %+v", tt.code, got, tt.want)
			}
		})
	}
}

func TestBuildDevices(t *testing.T) {
	devices, err := buildDevices([]config.DeviceConfig{
		{Name: "Data 1", Address: "D0", Type: "word"},
		{Name: "Trigger", Address: "D8008", Type: "Word"},
		{Name: "Bit 1", Address: "M0", Type: "BIT"},
	})
	if err != nil {
		t.Fatalf("buildDevices() error = %v", err)
	}
	if len(devices) != 3 {
		t.Fatalf("len = %d, want 3", len(devices))
	}
	if devices[0].Type != device.TypeWord || devices[2].Type != device.TypeBit {
		t.Errorf("types = %s, %s", devices[0].Type, devices[2].Type)
	}
	if devices[1].Address != "D8008" || devices[1].Name != "Trigger" {
		t.Errorf("devices[1] = %+v", devices[1])
	}

	if _, err := buildDevices([]config.DeviceConfig{{Address: "D0", Type: "Float"}}); err == nil {
		t.Error("buildDevices(Float) error = nil")
	}
}

func TestHealthCheck_NothingEnabled(t *testing.T) {
	if err := healthCheck(context.Background(), nil, nil, nil); err != nil {
		t.Errorf("healthCheck() error = %v, want nil", err)
	}
}
