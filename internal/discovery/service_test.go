package discovery

import "testing"

func TestService_String(t *testing.T) {
	svc := &Service{
		Instance: "wsecho",
		Hostname: "buildbox.local.",
		IP:       "192.168.4.16",
		Port:     8080,
	}

	expected := "wsecho (buildbox.local.) at 192.168.4.16:8080"
	if svc.String() != expected {
		t.Errorf("Service.String() = %v, want %v", svc.String(), expected)
	}
}

func TestService_URL(t *testing.T) {
	tests := []struct {
		name     string
		svc      *Service
		expected string
	}{
		{
			name:     "plain",
			svc:      &Service{IP: "192.168.4.16", Port: 8080},
			expected: "ws://192.168.4.16:8080/",
		},
		{
			name:     "tls with path",
			svc:      &Service{IP: "10.0.0.5", Port: 8443, Metadata: map[string]string{"tls": "true", "path": "/echo"}},
			expected: "wss://10.0.0.5:8443/echo",
		},
		{
			name:     "ipv6",
			svc:      &Service{IP: "fe80::1", Port: 9000},
			expected: "ws://[fe80::1]:9000/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.svc.URL(); got != tt.expected {
				t.Errorf("Service.URL() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestService_GetMetadata(t *testing.T) {
	svc := &Service{Metadata: map[string]string{"version": "dev"}}

	if got := svc.GetMetadata("version"); got != "dev" {
		t.Errorf("GetMetadata(version) = %q, want dev", got)
	}
	if got := svc.GetMetadata("missing"); got != "" {
		t.Errorf("GetMetadata(missing) = %q, want empty", got)
	}
	if got := (&Service{}).GetMetadata("version"); got != "" {
		t.Errorf("GetMetadata on nil metadata = %q, want empty", got)
	}
}
