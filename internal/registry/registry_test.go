package registry

import (
	"errors"
	"strings"
	"testing"
)

func TestNew_NormalizesAndSorts(t *testing.T) {
	reg, err := New([]Node{
		{ID: "et1002", Endpoint: "http://b", Location: "Bern"},
		{ID: " Et0002 ", Endpoint: "http://a", Location: "Zurich"},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ids := reg.IDs()
	if len(ids) != 2 || ids[0] != "ET0002" || ids[1] != "ET1002" {
		t.Errorf("IDs() = %v, want [ET0002 ET1002]", ids)
	}

	nodes := reg.Nodes()
	if nodes[0].Location != "Zurich" {
		t.Errorf("Nodes()[0].Location = %q, want Zurich", nodes[0].Location)
	}
	if reg.Len() != 2 {
		t.Errorf("Len() = %d, want 2", reg.Len())
	}
}

func TestNew_Empty(t *testing.T) {
	_, err := New(nil)
	if !errors.Is(err, ErrNoNodes) {
		t.Errorf("New(nil) error = %v, want ErrNoNodes", err)
	}
}

func TestNew_BlankID(t *testing.T) {
	_, err := New([]Node{{ID: "  ", Endpoint: "http://a"}})
	if err == nil || !strings.Contains(err.Error(), "id is required") {
		t.Errorf("New() error = %v, want 'id is required'", err)
	}
}

func TestNew_DuplicateAfterNormalization(t *testing.T) {
	_, err := New([]Node{
		{ID: "et0002", Endpoint: "http://a"},
		{ID: "ET0002", Endpoint: "http://b"},
	})
	if err == nil || !strings.Contains(err.Error(), "duplicate node id") {
		t.Errorf("New() error = %v, want duplicate node id", err)
	}
}

func TestLookup_CaseInsensitive(t *testing.T) {
	reg, err := New([]Node{{ID: "ET0002", Endpoint: "http://a", Location: "Zurich"}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	for _, id := range []string{"ET0002", "et0002", "Et0002"} {
		n, ok := reg.Lookup(id)
		if !ok {
			t.Errorf("Lookup(%q) not found", id)
			continue
		}
		if n.ID != "ET0002" {
			t.Errorf("Lookup(%q).ID = %q, want ET0002", id, n.ID)
		}
	}

	if _, ok := reg.Lookup("ET9999"); ok {
		t.Error("Lookup(ET9999) found, want missing")
	}
}

func TestRegistry_Immutable(t *testing.T) {
	headers := map[string]string{"Authorization": "Bearer x"}
	reg, err := New([]Node{{ID: "a", Endpoint: "http://a", Headers: headers}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// mutating the input and the returned copies must not leak into the registry
	headers["Authorization"] = "changed"
	ids := reg.IDs()
	ids[0] = "Z"
	n, _ := reg.Lookup("a")
	n.Headers["Authorization"] = "changed again"

	got, _ := reg.Lookup("A")
	if got.Headers["Authorization"] != "Bearer x" {
		t.Errorf("Headers[Authorization] = %q, want %q", got.Headers["Authorization"], "Bearer x")
	}
	if reg.IDs()[0] != "A" {
		t.Errorf("IDs()[0] = %q, want A", reg.IDs()[0])
	}
}
