package discovery

import (
	"net"
	"sort"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
)

func newEntry(instance, host string, port int, v4, v6 []net.IP, text ...string) *zeroconf.ServiceEntry {
	e := zeroconf.NewServiceEntry(instance, ServiceType, ServiceDomain)
	e.HostName = host
	e.Port = port
	e.AddrIPv4 = v4
	e.AddrIPv6 = v6
	e.Text = text
	return e
}

func TestParseServiceEntry(t *testing.T) {
	tests := []struct {
		name     string
		entry    *zeroconf.ServiceEntry
		wantNil  bool
		wantIP   string
		wantPort int
	}{
		{
			name:     "IPv4 service",
			entry:    newEntry("wsecho", "buildbox.local.", 8080, []net.IP{net.ParseIP("192.168.4.16")}, nil, "version=dev"),
			wantIP:   "192.168.4.16",
			wantPort: 8080,
		},
		{
			name:     "IPv6 only service",
			entry:    newEntry("wsecho", "buildbox.local.", 9000, nil, []net.IP{net.ParseIP("fe80::1")}),
			wantIP:   "fe80::1",
			wantPort: 9000,
		},
		{
			name: "prefers IPv4",
			entry: newEntry("wsecho", "buildbox.local.", 8080,
				[]net.IP{net.ParseIP("10.0.0.5")}, []net.IP{net.ParseIP("fe80::2")}),
			wantIP:   "10.0.0.5",
			wantPort: 8080,
		},
		{
			name:    "no address",
			entry:   newEntry("wsecho", "buildbox.local.", 8080, nil, nil),
			wantNil: true,
		},
		{
			name:    "no port",
			entry:   newEntry("wsecho", "buildbox.local.", 0, []net.IP{net.ParseIP("10.0.0.5")}, nil),
			wantNil: true,
		},
		{
			name:    "no instance",
			entry:   newEntry("", "buildbox.local.", 8080, []net.IP{net.ParseIP("10.0.0.5")}, nil),
			wantNil: true,
		},
		{
			name:    "nil entry",
			entry:   nil,
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := parseServiceEntry(tt.entry)

			if tt.wantNil {
				if svc != nil {
					t.Errorf("parseServiceEntry() = %v, want nil", svc)
				}
				return
			}
			if svc == nil {
				t.Fatal("parseServiceEntry() = nil, want service")
			}
			if svc.IP != tt.wantIP {
				t.Errorf("svc.IP = %v, want %v", svc.IP, tt.wantIP)
			}
			if svc.Port != tt.wantPort {
				t.Errorf("svc.Port = %v, want %v", svc.Port, tt.wantPort)
			}
			if svc.Instance != tt.entry.Instance {
				t.Errorf("svc.Instance = %v, want %v", svc.Instance, tt.entry.Instance)
			}
			if svc.Hostname != tt.entry.HostName {
				t.Errorf("svc.Hostname = %v, want %v", svc.Hostname, tt.entry.HostName)
			}
			if time.Since(svc.DiscoveredAt) > time.Second {
				t.Errorf("svc.DiscoveredAt is not recent: %v", svc.DiscoveredAt)
			}
		})
	}
}

func TestDecodeTXT(t *testing.T) {
	got := decodeTXT([]string{"path=/", "version=1.0", "flag", "=orphan", "expr=a=b"})

	want := map[string]string{
		"path":    "/",
		"version": "1.0",
		"flag":    "",
		"expr":    "a=b",
	}
	if len(got) != len(want) {
		t.Errorf("decodeTXT() has %d entries, want %d: %v", len(got), len(want), got)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("decodeTXT()[%q] = %q, want %q", k, got[k], v)
		}
	}
}

func TestEncodeTXT(t *testing.T) {
	got := encodeTXT(map[string]string{"tls": "false", "version": "dev"})
	sort.Strings(got)

	want := []string{"tls=false", "version=dev"}
	if len(got) != len(want) {
		t.Fatalf("encodeTXT() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("encodeTXT()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if got := encodeTXT(nil); len(got) != 0 {
		t.Errorf("encodeTXT(nil) = %v, want empty", got)
	}
}

func TestNewScanner(t *testing.T) {
	scanner := NewScanner()
	if scanner.Timeout != DefaultScanTimeout {
		t.Errorf("scanner.Timeout = %v, want %v", scanner.Timeout, DefaultScanTimeout)
	}
}

func TestAdvertise_InvalidArguments(t *testing.T) {
	if _, err := Advertise("", 8080, nil); err == nil {
		t.Error("Advertise() with empty instance should fail")
	}
	if _, err := Advertise("wsecho", 0, nil); err == nil {
		t.Error("Advertise() with port 0 should fail")
	}
	if _, err := Advertise("wsecho", 70000, nil); err == nil {
		t.Error("Advertise() with port 70000 should fail")
	}
}

// Live advertise/browse round trips need multicast and are left to manual runs.
