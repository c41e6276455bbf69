package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseFile parses a model definition from a YAML file.
func ParseFile(path string) (Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Model{}, fmt.Errorf("read file %s: %w", path, err)
	}

	return Parse(data)
}

// Parse parses a model definition from YAML bytes.
func Parse(data []byte) (Model, error) {
	var m Model
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Model{}, fmt.Errorf("parse yaml: %w", err)
	}

	if err := Validate(m); err != nil {
		return Model{}, fmt.Errorf("validate model %q: %w", m.Name, err)
	}

	return m, nil
}

// ParseDir parses all model definitions from a directory, including subdirectories.
func ParseDir(dir string) ([]Model, error) {
	var models []Model

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		if entry.IsDir() {
			sub, err := ParseDir(path)
			if err != nil {
				return nil, err
			}
			models = append(models, sub...)
			continue
		}

		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		m, err := ParseFile(path)
		if err != nil {
			return nil, err
		}

		models = append(models, m)
	}

	return models, nil
}

// Validate checks a model definition for structural errors. Type tags are not
// resolved here; that happens against a field type registry when the model
// class is defined.
func Validate(m Model) error {
	var errs []string

	if m.Name == "" {
		errs = append(errs, "model name is required")
	} else if !isValidIdentifier(m.Name) {
		errs = append(errs, fmt.Sprintf("model name %q is not a valid identifier", m.Name))
	}

	if len(m.Fields) == 0 {
		errs = append(errs, "model must have at least one field")
	}

	seen := make(map[string]bool, len(m.Fields))
	for _, f := range m.Fields {
		if !isValidIdentifier(f.Name) {
			errs = append(errs, fmt.Sprintf("field name %q is not a valid identifier", f.Name))
		}
		if seen[f.Name] {
			errs = append(errs, fmt.Sprintf("field %q declared twice", f.Name))
		}
		seen[f.Name] = true

		if err := validateField(f.Name, f.Field); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// validateField validates a single field declaration.
func validateField(name string, field Field) error {
	if field.Type == "" {
		return fmt.Errorf("field %q: type is required", name)
	}

	for _, c := range field.Constraints {
		if !isKnownConstraint(c.Type) {
			return fmt.Errorf("field %q: unknown constraint %q", name, c.Type)
		}
	}

	if s, ok := field.Default.(string); ok && len(field.Values) > 0 {
		found := false
		for _, v := range field.Values {
			if v == s {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("field %q: default %q is not one of the declared values", name, s)
		}
	}

	return nil
}

// isValidIdentifier checks if a string is a valid identifier.
func isValidIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, c := range s {
		if i == 0 {
			if !isLetter(c) && c != '_' {
				return false
			}
		} else {
			if !isLetter(c) && !isDigit(c) && c != '_' {
				return false
			}
		}
	}

	return true
}

func isLetter(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c rune) bool {
	return c >= '0' && c <= '9'
}
