package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewSafeClient(t *testing.T) {
	client := NewSSRFGuard().NewSafeClient(5 * time.Second)
	if client == nil {
		t.Fatal("NewSafeClient() returned nil")
	}
	if client.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want %v", client.Timeout, 5*time.Second)
	}
	if client.Transport == nil || client.Transport == http.DefaultTransport {
		t.Error("expected a custom Transport")
	}
}

// httptestサーバーは127.0.0.1で起動するため、安全なクライアントからは到達できない。
func TestNewSafeClient_BlocksLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"question":"x","solution":1}`))
	}))
	defer ts.Close()

	client := NewSSRFGuard().NewSafeClient(2 * time.Second)
	resp, err := client.Get(ts.URL)
	if err == nil {
		resp.Body.Close()
		t.Fatal("expected loopback request to be blocked")
	}
}

func TestValidateURL(t *testing.T) {
	guard := NewSSRFGuard()
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"public https image", "https://www.sanfoh.com/uob/heart/images/abc.png", false},
		{"public http", "http://marcconrad.com/uob/heart/api.php", false},
		{"public IP", "https://93.184.216.34/x.png", false},
		{"empty", "", true},
		{"ftp scheme", "ftp://example.com/x", true},
		{"javascript scheme", "javascript:alert(1)", true},
		{"data URI", "data:image/png;base64,AAAA", true},
		{"no host", "https:///x.png", true},
		{"private 10/8", "http://10.0.0.1/", true},
		{"private 172.16/12", "http://172.20.1.1/", true},
		{"private 192.168/16", "http://192.168.1.1/", true},
		{"loopback", "http://127.0.0.1:8080/", true},
		{"metadata", "http://169.254.169.254/latest/meta-data/", true},
		{"zero address", "http://0.0.0.0/", true},
		{"ipv6 loopback", "http://[::1]/", true},
		{"ipv4-mapped loopback", "http://[::ffff:127.0.0.1]/", true},
		{"localhost", "http://LOCALHOST/", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := guard.ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestSSRFGuardInterface(t *testing.T) {
	var _ SSRFGuardService = NewSSRFGuard()
}
