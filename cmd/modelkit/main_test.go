package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/artpar/modelkit/core/model"
)

const articleYAML = `
model: article
fields:
  title:
    type: string
    required: true
  views: int
  secret:
    type: string
    internal: true
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeSchema(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestVersionCmd(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "modelkit dev") {
		t.Errorf("output = %q, want modelkit dev prefix", out)
	}
}

func TestValidateCmd(t *testing.T) {
	dir := t.TempDir()
	writeSchema(t, dir, "article.yaml", articleYAML)
	missing := filepath.Join(dir, "none.yaml")

	out, err := run(t, "validate", "--config", missing, "--schemas", dir)
	if err != nil {
		t.Fatalf("validate: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Model article (3 fields)") {
		t.Errorf("output missing model summary:\n%s", out)
	}
	if !strings.Contains(out, "Configuration is valid.") {
		t.Errorf("output missing final line:\n%s", out)
	}
}

func TestValidateCmd_Errors(t *testing.T) {
	tests := []struct {
		name    string
		files   map[string]string
		errPart string
	}{
		{"unknown type", map[string]string{"a.yaml": "model: a\nfields:\n  x: money\n"}, "money"},
		{"duplicate model", map[string]string{"a.yaml": articleYAML, "b.yaml": articleYAML}, "article"},
		{"bad yaml", map[string]string{"a.yaml": "model: [\n"}, "schema error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for name, content := range tt.files {
				writeSchema(t, dir, name, content)
			}

			_, err := run(t, "validate", "--config", filepath.Join(dir, "none.yaml"), "--schemas", dir)
			if err == nil {
				t.Fatal("validate should fail")
			}
			if !strings.Contains(err.Error(), tt.errPart) {
				t.Errorf("error = %v, want it to mention %q", err, tt.errPart)
			}
		})
	}
}

func TestInspectCmd(t *testing.T) {
	path := writeSchema(t, t.TempDir(), "article.yaml", articleYAML)

	out, err := run(t, "inspect", "--schema", path, "--set", "title=Hi", "--set", "views=3", "--set", "views=4")
	if err != nil {
		t.Fatalf("inspect: %v\n%s", err, out)
	}

	if !strings.Contains(out, "\"title\": \"Hi\",\n  \"views\": 4\n}") {
		t.Errorf("output should list public fields in order:\n%s", out)
	}
	if strings.Contains(out, "secret") {
		t.Errorf("internal field leaked:\n%s", out)
	}
	if !strings.Contains(out, "changed: title, views") {
		t.Errorf("output should report one change per field:\n%s", out)
	}
	if !strings.Contains(out, "article is valid") {
		t.Errorf("output should report validity:\n%s", out)
	}
}

func TestInspectCmd_Invalid(t *testing.T) {
	path := writeSchema(t, t.TempDir(), "article.yaml", articleYAML)

	out, err := run(t, "inspect", "--schema", path)
	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("inspect error = %v, want *model.ValidationError", err)
	}
	if !strings.Contains(out, "title: field is required") {
		t.Errorf("output should explain the failure:\n%s", out)
	}
}

func TestInspectCmd_BadAssignment(t *testing.T) {
	path := writeSchema(t, t.TempDir(), "article.yaml", articleYAML)

	tests := []struct {
		set     string
		errPart string
	}{
		{"title", "name=value"},
		{"nope=1", "unknown field"},
		{"views=abc", "set views"},
	}
	for _, tt := range tests {
		_, err := run(t, "inspect", "--schema", path, "--set", tt.set)
		if err == nil || !strings.Contains(err.Error(), tt.errPart) {
			t.Errorf("--set %s error = %v, want it to mention %q", tt.set, err, tt.errPart)
		}
	}
}
