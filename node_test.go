package etlive

import (
	"strings"
	"testing"
)

func TestNewNode_Valid(t *testing.T) {
	n, err := NewNode(" et0001 ", "http://10.0.0.1/api/last", WithLocation("Zurich"))
	if err != nil {
		t.Fatalf("NewNode() error = %v", err)
	}

	if n.ID() != "ET0001" {
		t.Errorf("ID() = %q, want %q", n.ID(), "ET0001")
	}
	if n.Endpoint() != "http://10.0.0.1/api/last" {
		t.Errorf("Endpoint() = %q", n.Endpoint())
	}
	if n.Location() != "Zurich" {
		t.Errorf("Location() = %q, want %q", n.Location(), "Zurich")
	}
}

func TestNewNode_EmptyID(t *testing.T) {
	for _, id := range []string{"", "   "} {
		if _, err := NewNode(id, "http://example.com"); err == nil {
			t.Errorf("NewNode(%q) expected error, got nil", id)
		}
	}
}

func TestNewNode_InvalidURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"no scheme", "example.com/api/last"},
		{"ftp scheme", "ftp://example.com/api/last"},
		{"no host", "http:///api/last"},
		{"malformed", "http://[::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewNode("ET0001", tt.url)
			if err == nil {
				t.Fatalf("NewNode(%q) expected error, got nil", tt.url)
			}
			if !strings.Contains(err.Error(), "ET0001") {
				t.Errorf("error %q should name the node", err)
			}
		})
	}
}

func TestNewNode_ValidURLs(t *testing.T) {
	for _, u := range []string{
		"http://10.0.0.2/api/last",
		"https://et.example.org:8443/api/last",
		"HTTP://upper.example.com/",
	} {
		if _, err := NewNode("ET0001", u); err != nil {
			t.Errorf("NewNode(%q) error = %v", u, err)
		}
	}
}

func TestWithHeaders(t *testing.T) {
	n, err := NewNode("ET0001", "http://example.com",
		WithHeaders("Authorization", "Bearer abc", "X-Site", "north"),
	)
	if err != nil {
		t.Fatalf("NewNode() error = %v", err)
	}

	h := n.Headers()
	if h["Authorization"] != "Bearer abc" || h["X-Site"] != "north" {
		t.Errorf("Headers() = %v", h)
	}
}

func TestWithHeaders_OddArgs(t *testing.T) {
	_, err := NewNode("ET0001", "http://example.com", WithHeaders("Authorization"))
	if err == nil {
		t.Error("expected error for odd number of header arguments")
	}
}

func TestNode_HeadersImmutability(t *testing.T) {
	n, _ := NewNode("ET0001", "http://example.com", WithHeaders("X-Token", "a"))

	h := n.Headers()
	h["X-Token"] = "changed"
	h["X-New"] = "added"

	if got := n.Headers()["X-Token"]; got != "a" {
		t.Errorf("Headers()[X-Token] = %q after external modification, want %q", got, "a")
	}
	if _, ok := n.Headers()["X-New"]; ok {
		t.Error("external modification leaked into node headers")
	}
}

func TestNode_ToRegistryNode(t *testing.T) {
	n, _ := NewNode("et7", "http://example.com", WithLocation("Bern"), WithHeaders("K", "V"))

	rn := n.toRegistryNode()
	if rn.ID != "ET7" || rn.Location != "Bern" || rn.Headers["K"] != "V" {
		t.Errorf("toRegistryNode() = %+v", rn)
	}

	rn.Headers["K"] = "mutated"
	if n.Headers()["K"] != "V" {
		t.Error("registry node shares headers map with Node")
	}
}
