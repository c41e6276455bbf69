package registry

import (
	"errors"
	"testing"

	"github.com/artpar/modelkit/core/fieldtype"
	"github.com/artpar/modelkit/core/schema"
	"github.com/google/go-cmp/cmp"
)

// Helper function to create a simple test schema
func makeTestSchema(name string) schema.Model {
	return schema.Model{
		Name: name,
		Fields: schema.Fields{
			{Name: "id", Field: schema.Field{Type: schema.FieldTypeID}},
			{Name: "name", Field: schema.Field{Type: schema.FieldTypeString}},
		},
	}
}

func names(r *Registry) []string {
	var out []string
	for _, c := range r.List() {
		out = append(out, c.Name())
	}
	return out
}

func TestRegistry_Register(t *testing.T) {
	r := New(fieldtype.Standard(nil))

	c, err := r.Register(makeTestSchema("user"))
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if c.Name() != "user" {
		t.Errorf("Name() = %s, want user", c.Name())
	}

	got, ok := r.Get("user")
	if !ok || got != c {
		t.Error("Get() should return the registered class")
	}
}

func TestRegistry_Register_DuplicateName(t *testing.T) {
	r := New(fieldtype.Standard(nil))

	if _, err := r.Register(makeTestSchema("user")); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Register(makeTestSchema("user")); err == nil {
		t.Error("Register() should fail for duplicate name")
	}
}

func TestRegistry_Register_UnknownType(t *testing.T) {
	r := New(fieldtype.NewRegistry())

	_, err := r.Register(makeTestSchema("user"))
	if !errors.Is(err, fieldtype.ErrUnknownType) {
		t.Errorf("Register() error = %v, want ErrUnknownType", err)
	}
	if _, ok := r.Get("user"); ok {
		t.Error("failed registration must not be stored")
	}
}

func TestRegistry_Unregister(t *testing.T) {
	r := New(fieldtype.Standard(nil))
	_, _ = r.Register(makeTestSchema("user"))

	if err := r.Unregister("user"); err != nil {
		t.Fatalf("Unregister() error = %v", err)
	}
	if _, ok := r.Get("user"); ok {
		t.Error("Get() should not find unregistered class")
	}
	if err := r.Unregister("user"); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("Unregister() error = %v, want ErrNotRegistered", err)
	}
}

func TestRegistry_Lookup(t *testing.T) {
	r := New(fieldtype.Standard(nil))

	if _, err := r.Lookup("ghost"); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("Lookup() error = %v, want ErrNotRegistered", err)
	}
}

func TestRegistry_List(t *testing.T) {
	r := New(fieldtype.Standard(nil))
	for _, n := range []string{"zebra", "alpha", "mid"} {
		if _, err := r.Register(makeTestSchema(n)); err != nil {
			t.Fatal(err)
		}
	}

	if diff := cmp.Diff([]string{"alpha", "mid", "zebra"}, names(r)); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}
}

func TestRegistry_Replace(t *testing.T) {
	r := New(fieldtype.Standard(nil))
	_, _ = r.Register(makeTestSchema("old"))

	if err := r.Replace([]schema.Model{makeTestSchema("a"), makeTestSchema("b")}); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b"}, names(r)); diff != "" {
		t.Errorf("after Replace (-want +got):\n%s", diff)
	}

	bad := makeTestSchema("c")
	bad.Fields = append(bad.Fields, schema.NamedField{Name: "geo", Field: schema.Field{Type: "point"}})
	err := r.Replace([]schema.Model{makeTestSchema("x"), makeTestSchema("x"), bad})

	var dup *DuplicateError
	if !errors.As(err, &dup) {
		t.Fatalf("Replace() error = %v, want DuplicateError", err)
	}
	if !errors.Is(err, fieldtype.ErrUnknownType) {
		t.Errorf("Replace() error = %v, want ErrUnknownType joined", err)
	}
	if diff := cmp.Diff([]string{"a", "b"}, names(r)); diff != "" {
		t.Errorf("failed Replace must keep catalog (-want +got):\n%s", diff)
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := New(fieldtype.Standard(nil))

	done := make(chan bool)

	go func() {
		for i := 0; i < 100; i++ {
			r.List()
			r.Get("modelA")
		}
		done <- true
	}()

	go func() {
		for i := 0; i < 10; i++ {
			_, _ = r.Register(makeTestSchema("model" + string(rune('A'+i))))
		}
		done <- true
	}()

	<-done
	<-done
}
