package model

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/artpar/modelkit/core/events"
	"github.com/artpar/modelkit/core/fieldtype"
	"github.com/artpar/modelkit/core/scheduler"
	"github.com/artpar/modelkit/core/schema"
	"github.com/google/go-cmp/cmp"
)

func articleSchema() schema.Model {
	return schema.Model{
		Name: "article",
		Fields: schema.Fields{
			{Name: "title", Field: schema.Field{Type: schema.FieldTypeString, Default: "untitled"}},
			{Name: "views", Field: schema.Field{Type: schema.FieldTypeInt}},
			{Name: "token", Field: schema.Field{Type: schema.FieldTypeString, Internal: true, Default: "s3cret"}},
			{Name: "stamp", Field: schema.Field{Type: schema.FieldTypeString, DefaultFunc: func() any { return "produced" }}},
		},
	}
}

func newArticle(t *testing.T, data map[string]any) *Model {
	t.Helper()
	m, err := New(articleSchema(), fieldtype.Standard(nil), data)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return m
}

func TestNewAppliesDefaults(t *testing.T) {
	m := newArticle(t, nil)

	want := map[string]any{
		"title": "untitled",
		"views": 0,
		"token": "s3cret",
		"stamp": "produced",
	}
	for name, v := range want {
		got, err := m.Get(name)
		if err != nil {
			t.Fatalf("Get(%q) failed: %v", name, err)
		}
		if got != v {
			t.Errorf("Get(%q) = %v, want %v", name, got, v)
		}
	}

	if m.IsChanged() {
		t.Error("IsChanged() = true right after construction")
	}
}

func TestNewParsesInitialData(t *testing.T) {
	m := newArticle(t, map[string]any{"title": 12, "views": "3", "extra": true})

	if got := m.MustGet("title"); got != "12" {
		t.Errorf("title = %#v, want \"12\"", got)
	}
	if got := m.MustGet("views"); got != 3 {
		t.Errorf("views = %#v, want 3", got)
	}
}

func TestNewFailsOnBadInitialData(t *testing.T) {
	_, err := New(articleSchema(), fieldtype.Standard(nil), map[string]any{"views": "many"})
	if err == nil {
		t.Fatal("expected parse error")
	}
}

func TestDefineUnknownType(t *testing.T) {
	s := schema.Model{Name: "geo", Fields: schema.Fields{{Name: "at", Field: schema.Field{Type: "point"}}}}

	_, err := Define(s, fieldtype.NewRegistry())
	if !errors.Is(err, fieldtype.ErrUnknownType) {
		t.Errorf("Define() error = %v, want ErrUnknownType", err)
	}

	if _, err := Define(s, nil); err == nil {
		t.Error("Define(nil registry) should fail")
	}
}

func TestDefineParseNotImplemented(t *testing.T) {
	types := fieldtype.NewRegistry()
	types.MustRegister("bare", fieldtype.Mixin{})
	s := schema.Model{Name: "x", Fields: schema.Fields{{Name: "a", Field: schema.Field{Type: "bare"}}}}

	c, err := Define(s, types)
	if err != nil {
		t.Fatalf("Define failed: %v", err)
	}
	if _, err := c.New(nil); err == nil || !strings.Contains(err.Error(), "parse not implemented") {
		t.Errorf("New() error = %v, want parse not implemented", err)
	}
}

func TestGetUnknownField(t *testing.T) {
	m := newArticle(t, nil)

	if _, err := m.Get("nonexistent"); !errors.Is(err, ErrUnknownField) {
		t.Errorf("Get() error = %v, want ErrUnknownField", err)
	}

	defer func() {
		if recover() == nil {
			t.Error("MustGet should panic on unknown field")
		}
	}()
	m.MustGet("nonexistent")
}

func TestSetReturnsParsedValue(t *testing.T) {
	m := newArticle(t, nil)

	ok, err := m.Set("views", "41")
	if err != nil || !ok {
		t.Fatalf("Set() = %v, %v", ok, err)
	}
	if got := m.MustGet("views"); got != 41 {
		t.Errorf("views = %#v, want 41", got)
	}
	if !m.IsChanged() {
		t.Error("IsChanged() = false after changing set")
	}

	ok, err = m.Set("missing", 1)
	if ok || err != nil {
		t.Errorf("Set(missing) = %v, %v; want false, nil", ok, err)
	}

	if _, err := m.Set("views", "lots"); err == nil {
		t.Error("expected parse error")
	}
	if got := m.MustGet("views"); got != 41 {
		t.Errorf("views after failed set = %v, want 41", got)
	}
}

func TestSetAll(t *testing.T) {
	m := newArticle(t, nil)

	err := m.SetAll(map[string]any{"title": "hello", "views": 2, "unknown": "dropped"})
	if err != nil {
		t.Fatalf("SetAll failed: %v", err)
	}
	if m.MustGet("title") != "hello" || m.MustGet("views") != 2 {
		t.Errorf("values = %v, %v", m.MustGet("title"), m.MustGet("views"))
	}

	err = m.SetAll(map[string]any{"title": "again", "views": "x"})
	if err == nil {
		t.Fatal("expected joined parse error")
	}
	if m.MustGet("title") != "again" {
		t.Error("valid keys must still be applied when another key fails")
	}
}

func TestCommitAndRevert(t *testing.T) {
	m := newArticle(t, nil)

	_, _ = m.Set("title", "draft")
	m.Commit()
	if m.IsChanged() {
		t.Error("IsChanged() = true after Commit")
	}

	_, _ = m.Set("title", "edited")
	_, _ = m.Set("views", 9)
	m.Revert()

	if got := m.MustGet("title"); got != "draft" {
		t.Errorf("title after Revert = %v, want draft", got)
	}
	if got := m.MustGet("views"); got != 0 {
		t.Errorf("views after Revert = %v, want 0", got)
	}
	if m.IsChanged() {
		t.Error("IsChanged() = true after Revert")
	}
}

func TestRevertNotifiesEachField(t *testing.T) {
	m := newArticle(t, nil)

	var scoped []string
	m.OnField("title views", events.EventChange, func(ev events.Event) error {
		scoped = append(scoped, ev.Field)
		return nil
	})

	_, _ = m.Set("title", "x")
	_, _ = m.Set("views", 1)
	m.Flush()
	scoped = nil

	m.Revert()
	m.Flush()

	if diff := cmp.Diff([]string{"title", "views"}, scoped); diff != "" {
		t.Errorf("revert notifications mismatch (-want +got):\n%s", diff)
	}
}

func TestToJSONOmitsInternal(t *testing.T) {
	m := newArticle(t, map[string]any{"title": "Go"})

	want := map[string]any{"title": "Go", "views": 0, "stamp": "produced"}
	if diff := cmp.Diff(want, m.ToJSON()); diff != "" {
		t.Errorf("ToJSON() mismatch (-want +got):\n%s", diff)
	}

	out, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if got, want := string(out), `{"title":"Go","views":0,"stamp":"produced"}`; got != want {
		t.Errorf("MarshalJSON() = %s, want %s", got, want)
	}
}

func TestBaselineIncludesInternal(t *testing.T) {
	m := newArticle(t, nil)
	_, _ = m.Set("title", "uncommitted")

	b := m.Baseline()
	if b["token"] != "s3cret" {
		t.Errorf("Baseline()[token] = %v, want s3cret", b["token"])
	}
	if b["title"] != "untitled" {
		t.Errorf("Baseline()[title] = %v, want committed value", b["title"])
	}
}

func TestValuesIncludesUncommitted(t *testing.T) {
	m := newArticle(t, nil)
	_, _ = m.Set("title", "uncommitted")

	v := m.Values()
	if v["title"] != "uncommitted" {
		t.Errorf("Values()[title] = %v, want uncommitted", v["title"])
	}
	if v["token"] != "s3cret" {
		t.Errorf("Values()[token] = %v, want s3cret", v["token"])
	}
	if !m.IsChanged() {
		t.Error("Values() must not commit")
	}
}

func TestScopedSubscriptionAndUnscopedChange(t *testing.T) {
	s := schema.Model{
		Name: "point",
		Fields: schema.Fields{
			{Name: "x", Field: schema.Field{Type: "int"}},
			{Name: "y", Field: schema.Field{Type: "int"}},
		},
	}
	m, err := New(s, fieldtype.Standard(nil), nil)
	if err != nil {
		t.Fatal(err)
	}

	var order []string
	m.OnField("x y", "change", func(ev events.Event) error {
		order = append(order, "change:"+ev.Field)
		return nil
	})
	m.On("change", func(events.Event) error {
		order = append(order, "change")
		return nil
	})

	_, _ = m.Set("x", 1)
	_, _ = m.Set("y", 2)
	m.Flush()

	want := []string{"change:x", "change", "change:y", "change"}
	if diff := cmp.Diff(want, order); diff != "" {
		t.Errorf("event order mismatch (-want +got):\n%s", diff)
	}
}

func TestDebounceCollapsesSynchronousSets(t *testing.T) {
	m := newArticle(t, nil)

	count := 0
	m.OnField("title", "change", func(events.Event) error {
		count++
		return nil
	})

	_, _ = m.Set("title", "a")
	_, _ = m.Set("title", "b")

	if count != 0 {
		t.Errorf("notified before flush: %d", count)
	}
	m.Flush()
	if count != 1 {
		t.Errorf("notifications = %d, want 1", count)
	}
	if m.MustGet("title") != "b" {
		t.Errorf("title = %v, want b", m.MustGet("title"))
	}
}

func TestUnAndOff(t *testing.T) {
	m := newArticle(t, nil)

	count := 0
	h := func(events.Event) error {
		count++
		return nil
	}
	sub := m.On("change", h)
	m.OnField("title", "change", h)

	m.Un(sub)
	m.Off("title", "change")

	_, _ = m.Set("title", "z")
	m.Flush()

	if count != 0 {
		t.Errorf("count = %d, want 0 after Un/Off", count)
	}
}

func TestTrigger(t *testing.T) {
	m := newArticle(t, nil)

	var got []any
	m.On("saved", func(ev events.Event) error {
		got = append(got, ev.Args...)
		return nil
	})
	m.OnField("title", "focus", func(ev events.Event) error {
		got = append(got, "focus:"+ev.Field)
		return nil
	})

	m.Trigger("saved", 1, "two")
	m.TriggerField("title", "focus")

	if diff := cmp.Diff([]any{1, "two", "focus:title"}, got); diff != "" {
		t.Errorf("trigger mismatch (-want +got):\n%s", diff)
	}
}

func TestReentrantSetInHandler(t *testing.T) {
	m := newArticle(t, nil)

	m.OnField("title", "change", func(events.Event) error {
		if m.MustGet("title") == "raw" {
			_, _ = m.Set("title", "normalized")
		}
		return nil
	})

	_, _ = m.Set("title", "raw")
	m.Flush()
	m.Flush()

	if got := m.MustGet("title"); got != "normalized" {
		t.Errorf("title = %v, want normalized", got)
	}
}

func TestDisposeCancelsNotifications(t *testing.T) {
	m := newArticle(t, nil)

	called := false
	m.On("change", func(events.Event) error {
		called = true
		return nil
	})

	_, _ = m.Set("title", "gone")
	m.Dispose()
	m.Flush()

	if called {
		t.Error("handler ran after Dispose")
	}
}

func TestSharedScheduler(t *testing.T) {
	q := scheduler.NewQueue()
	c, err := Define(articleSchema(), fieldtype.Standard(nil), WithScheduler(q))
	if err != nil {
		t.Fatal(err)
	}

	a, _ := c.New(nil)
	b, _ := c.New(nil)

	count := 0
	h := func(events.Event) error {
		count++
		return nil
	}
	a.On("change", h)
	b.On("change", h)

	_, _ = a.Set("title", "a")
	_, _ = b.Set("title", "b")

	if q.Pending() != 2 {
		t.Errorf("Pending() = %d, want 2", q.Pending())
	}
	q.Flush()
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}

type recordingObserver struct {
	mu        sync.Mutex
	changes   []string
	validated []int
}

func (o *recordingObserver) FieldChanged(model, field string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.changes = append(o.changes, model+"."+field)
}

func (o *recordingObserver) Validated(model string, invalid int, elapsed time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.validated = append(o.validated, invalid)
}

func TestObserver(t *testing.T) {
	obs := &recordingObserver{}
	m, err := New(articleSchema(), fieldtype.Standard(nil), nil, WithObserver(obs))
	if err != nil {
		t.Fatal(err)
	}

	_, _ = m.Set("views", 1)
	m.Flush()
	if err := m.Validate(context.Background()); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	if diff := cmp.Diff([]string{"article.views"}, obs.changes); diff != "" {
		t.Errorf("changes mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{0}, obs.validated); diff != "" {
		t.Errorf("validated mismatch (-want +got):\n%s", diff)
	}
}
