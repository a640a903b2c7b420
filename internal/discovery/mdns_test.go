// ABOUTME: Tests for mDNS discovery
// ABOUTME: Covers manager construction and address formatting
package discovery

import (
	"testing"
)

func TestNewManager(t *testing.T) {
	config := Config{
		DeviceName: "Test Device",
		Port:       8931,
	}

	mgr := NewManager(config)
	if mgr == nil {
		t.Fatal("expected manager to be created")
	}
	mgr.Stop()
}

func TestDeviceInfoAddr(t *testing.T) {
	d := &DeviceInfo{Name: "bench-device", Host: "192.168.1.40", Port: 8931}
	if got := d.Addr(); got != "192.168.1.40:8931" {
		t.Errorf("Addr() = %q, want %q", got, "192.168.1.40:8931")
	}
}
