package idgen_test

import (
	"context"
	"regexp"
	"sync"
	"testing"

	"github.com/artpar/modelkit/adapters/idgen"
	"github.com/artpar/modelkit/core/fieldtype"
	"github.com/artpar/modelkit/core/model"
	"github.com/artpar/modelkit/core/schema"
)

var uuidV4 = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

func TestUUID_New(t *testing.T) {
	g := idgen.UUID{}

	id := g.New()
	if !uuidV4.MatchString(id) {
		t.Errorf("ID %s doesn't match UUID v4 format", id)
	}
}

func TestUUID_New_Unique(t *testing.T) {
	g := idgen.UUID{}

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := g.New()
		if seen[id] {
			t.Errorf("duplicate ID generated: %s", id)
		}
		seen[id] = true
	}
}

func TestSequential_New(t *testing.T) {
	g := idgen.NewSequential("rec_")

	for _, want := range []string{"rec_1", "rec_2", "rec_3"} {
		if got := g.New(); got != want {
			t.Errorf("New() = %s, want %s", got, want)
		}
	}

	g.Reset()
	if got := g.New(); got != "rec_1" {
		t.Errorf("New() after Reset = %s, want rec_1", got)
	}
}

func TestSequential_Concurrent(t *testing.T) {
	g := idgen.NewSequential("")

	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := g.New()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != 800 {
		t.Errorf("unique IDs = %d, want 800", len(seen))
	}
}

func TestSequential_AsUUIDFieldProducer(t *testing.T) {
	s := schema.Model{Name: "doc", Fields: schema.Fields{
		{Name: "key", Field: schema.Field{Type: schema.FieldTypeUUID}},
	}}
	types := fieldtype.Standard(idgen.NewSequential("k"))

	a, err := model.New(s, types, nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := model.New(s, types, nil)
	if err != nil {
		t.Fatal(err)
	}

	if got := a.MustGet("key"); got != "k1" {
		t.Errorf("a.key = %v, want k1", got)
	}
	if got := b.MustGet("key"); got != "k2" {
		t.Errorf("b.key = %v, want k2", got)
	}
	if err := a.Validate(context.Background()); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}
