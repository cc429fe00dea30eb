package model

import "testing"

func TestServerConfigBaseURL(t *testing.T) {
	t.Helper()

	tests := []struct {
		name string
		cfg  ServerConfig
		want string
	}{
		{
			name: "plain host with ssl disabled",
			cfg:  ServerConfig{Host: "192.168.1.20:8080", SSL: false},
			want: "http://192.168.1.20:8080/rest",
		},
		{
			name: "plain host with ssl enabled",
			cfg:  ServerConfig{Host: "openhab.local:8443", SSL: true},
			want: "https://openhab.local:8443/rest",
		},
		{
			name: "host with explicit scheme keeps scheme",
			cfg:  ServerConfig{Host: "http://openhab.local", SSL: true},
			want: "http://openhab.local/rest",
		},
		{
			name: "host with rest path does not duplicate rest",
			cfg:  ServerConfig{Host: "openhab.local/rest", SSL: true},
			want: "https://openhab.local/rest",
		},
		{
			name: "host with custom path appends rest",
			cfg:  ServerConfig{Host: "https://home.example.com/openhab", SSL: true},
			want: "https://home.example.com/openhab/rest",
		},
		{
			name: "empty host falls back to localhost",
			cfg:  ServerConfig{},
			want: "http://localhost:8080/rest",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Helper()
			got := tt.cfg.BaseURL()
			if got != tt.want {
				t.Fatalf("BaseURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestServerConfigEventsURL(t *testing.T) {
	cfg := ServerConfig{Host: "openhab.local:8080"}
	if got, want := cfg.EventsURL(), "http://openhab.local:8080/rest/events"; got != want {
		t.Fatalf("EventsURL() = %q, want %q", got, want)
	}
}
