package service

import "testing"

// TestHubHealthPath проверяет путь проверки Hub для dephealth.
func TestHubHealthPath(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"https://sandbox.localcontextshub.org/api/v2", "/api/v2/"},
		{"https://sandbox.localcontextshub.org/api/v2/", "/api/v2/"},
		{"http://hub.local:8000", "/"},
		{"://bad", "/"},
	}

	for _, tt := range tests {
		if got := hubHealthPath(tt.input); got != tt.want {
			t.Errorf("hubHealthPath(%q) = %q, ожидалось %q", tt.input, got, tt.want)
		}
	}
}

func TestIsHTTPS(t *testing.T) {
	if !isHTTPS("https://localcontextshub.org/api/v2") {
		t.Error("https URL не распознан")
	}
	if isHTTPS("http://hub.local") {
		t.Error("http URL распознан как https")
	}
}
