package record

import (
	"testing"

	"github.com/ClusterCockpit/cc-dataplane/internal/symbol"
	"github.com/ClusterCockpit/cc-dataplane/internal/value"
)

func TestSetGetString(t *testing.T) {
	r := New()
	r.SetString("name", value.NewString("cpu_load"))

	v, ok := r.GetString("name")
	if !ok {
		t.Fatal("expected field to be present")
	}
	s, _ := v.AsString()
	if s != "cpu_load" {
		t.Fatalf("got %q", s)
	}
}

func TestFromFields(t *testing.T) {
	r := FromFields(map[string]value.Value{
		"a": value.NewInt(1),
		"b": value.NewInt(2),
	})
	if r.Len() != 2 {
		t.Fatalf("expected 2 fields, got %d", r.Len())
	}
}

func TestAttributeIfAbsent(t *testing.T) {
	r := New()
	r.SetAttributeIfAbsent(Type, value.NewString(TimeseriesRecord))
	r.SetAttributeIfAbsent(Type, value.NewString("other"))

	if !r.IsType(TimeseriesRecord) {
		t.Fatal("expected first SetAttributeIfAbsent to win")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	r := New()
	r.SetString("x", value.NewInt(1))

	clone := r.Clone()
	clone.SetString("x", value.NewInt(2))
	clone.SetString("y", value.NewInt(3))

	v, _ := r.GetString("x")
	i, _ := v.AsInt()
	if i != 1 {
		t.Fatalf("mutating clone affected original: x=%d", i)
	}
	if _, ok := r.GetString("y"); ok {
		t.Fatal("mutating clone added field to original")
	}
}

func TestDelete(t *testing.T) {
	r := New()
	key := symbol.Intern("z")
	r.Set(key, value.NewBool(true))
	if !r.Delete(key) {
		t.Fatal("expected Delete to report true for present key")
	}
	if r.Delete(key) {
		t.Fatal("expected second Delete to report false")
	}
}
