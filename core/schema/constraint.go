package schema

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"
)

// Constraint is a declared rule on a field value. Value is the rule's
// parameter: a bound, a length, a pattern or a list.
type Constraint struct {
	Type    ConstraintType `yaml:"type" json:"type"`
	Value   any            `yaml:"value" json:"value"`
	Message string         `yaml:"message,omitempty" json:"message,omitempty"`
}

// ConstraintType names a rule.
type ConstraintType string

const (
	ConstraintMin       ConstraintType = "min"
	ConstraintMax       ConstraintType = "max"
	ConstraintMinLength ConstraintType = "min_length"
	ConstraintMaxLength ConstraintType = "max_length"
	ConstraintPattern   ConstraintType = "pattern"
	ConstraintNotEmpty  ConstraintType = "not_empty" // rejects blank strings
	ConstraintOneOf     ConstraintType = "one_of"
)

// ConstraintError is one broken rule.
type ConstraintError struct {
	Field      string `json:"field"`
	Constraint string `json:"constraint"`
	Value      any    `json:"value,omitempty"`
	Message    string `json:"message"`
}

func (e ConstraintError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// rule checks value against the constraint parameter. It returns the default
// message and the value to report when the value breaks the rule, and ok
// when it passes or the rule does not apply to the value's type.
type rule func(value, param any) (msg string, reported any, ok bool)

var rules = map[ConstraintType]rule{
	ConstraintMin: numberRule(func(v, bound float64) bool { return v >= bound }, "must be at least %v"),
	ConstraintMax: numberRule(func(v, bound float64) bool { return v <= bound }, "must be at most %v"),

	ConstraintMinLength: lengthRule(func(n, bound int) bool { return n >= bound }, "must be at least %d characters"),
	ConstraintMaxLength: lengthRule(func(n, bound int) bool { return n <= bound }, "must be at most %d characters"),

	ConstraintPattern: func(value, param any) (string, any, bool) {
		str, isStr := value.(string)
		re := compilePattern(param)
		if !isStr || re == nil || re.MatchString(str) {
			return "", nil, true
		}
		return "does not match required pattern", value, false
	},

	ConstraintNotEmpty: func(value, _ any) (string, any, bool) {
		str, isStr := value.(string)
		if !isStr || strings.TrimSpace(str) != "" {
			return "", nil, true
		}
		return "must not be empty", value, false
	},

	ConstraintOneOf: func(value, param any) (string, any, bool) {
		allowed, known := anyList(param)
		if !known {
			return "", nil, true
		}
		got := fmt.Sprint(value)
		options := make([]string, len(allowed))
		for i, a := range allowed {
			options[i] = fmt.Sprint(a)
			if options[i] == got {
				return "", nil, true
			}
		}
		return "must be one of: " + strings.Join(options, ", "), value, false
	},
}

func numberRule(pass func(v, bound float64) bool, format string) rule {
	return func(value, param any) (string, any, bool) {
		bound, err := toFloat64(param)
		if err != nil {
			return "", nil, true
		}
		v, err := toFloat64(value)
		if err != nil || pass(v, bound) {
			return "", nil, true
		}
		return fmt.Sprintf(format, bound), value, false
	}
}

func lengthRule(pass func(n, bound int) bool, format string) rule {
	return func(value, param any) (string, any, bool) {
		bound, err := toInt(param)
		if err != nil {
			return "", nil, true
		}
		str, isStr := value.(string)
		if !isStr {
			return "", nil, true
		}
		n := utf8.RuneCountInString(str)
		if pass(n, bound) {
			return "", nil, true
		}
		return fmt.Sprintf(format, bound), n, false
	}
}

// CheckField returns every rule of a field declaration that value breaks:
// required first, then declared values, then constraints in order. An empty
// required value reports only "required".
func CheckField(name string, f Field, value any) []ConstraintError {
	if f.Required && isEmpty(value) {
		return []ConstraintError{{Field: name, Constraint: "required", Message: "field is required"}}
	}

	var errs []ConstraintError
	if len(f.Values) > 0 && !isEmpty(value) {
		if e := ValidateConstraint(name, value, Constraint{Type: ConstraintOneOf, Value: f.Values}); e != nil {
			errs = append(errs, *e)
		}
	}
	for _, c := range f.Constraints {
		if e := ValidateConstraint(name, value, c); e != nil {
			errs = append(errs, *e)
		}
	}
	return errs
}

// ValidateConstraint checks value against one constraint. Unknown rules,
// malformed parameters and values of a type the rule does not cover pass.
func ValidateConstraint(fieldName string, value any, c Constraint) *ConstraintError {
	check, known := rules[c.Type]
	if !known {
		return nil
	}
	msg, reported, ok := check(value, c.Value)
	if ok {
		return nil
	}
	if c.Message != "" {
		msg = c.Message
	}
	return &ConstraintError{Field: fieldName, Constraint: string(c.Type), Value: reported, Message: msg}
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	default:
		return false
	}
}

func isKnownConstraint(t ConstraintType) bool {
	_, ok := rules[t]
	return ok
}

// Validators run on every validation, so compiled patterns are kept. A nil
// entry marks a pattern that does not compile.
var patterns sync.Map // string -> *regexp.Regexp

func compilePattern(param any) *regexp.Regexp {
	src, ok := param.(string)
	if !ok {
		return nil
	}
	if cached, ok := patterns.Load(src); ok {
		return cached.(*regexp.Regexp)
	}
	re, err := regexp.Compile(src)
	if err != nil {
		re = nil
	}
	patterns.Store(src, re)
	return re
}

func anyList(param any) ([]any, bool) {
	switch v := param.(type) {
	case []any:
		return v, true
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

func toFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(n, 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to float64", v)
	}
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case string:
		return strconv.Atoi(n)
	default:
		return 0, fmt.Errorf("cannot convert %T to int", v)
	}
}
