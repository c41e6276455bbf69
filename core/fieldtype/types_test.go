package fieldtype

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/google/uuid"
)

func TestParsers(t *testing.T) {
	tests := []struct {
		name    string
		parse   func(any) (any, error)
		raw     any
		want    any
		wantErr bool
	}{
		{"string from nil", parseString, nil, "", false},
		{"string from int", parseString, 12, "12", false},
		{"string from float", parseString, 1.5, "1.5", false},
		{"string from bool", parseString, true, "true", false},
		{"string from bytes", parseString, []byte("hi"), "hi", false},
		{"int from string", parseInt, " 42 ", 42, false},
		{"int from json float", parseInt, float64(7), 7, false},
		{"int from fractional", parseInt, 7.5, nil, true},
		{"int from json.Number", parseInt, json.Number("9"), 9, false},
		{"int from bool", parseInt, true, nil, true},
		{"int from uint8", parseInt, uint8(200), 200, false},
		{"int from uint64", parseInt, uint64(12), 12, false},
		{"int from uint64 overflow", parseInt, uint64(math.MaxUint64), nil, true},
		{"int from uint overflow", parseInt, uint(math.MaxUint), nil, true},
		{"int from huge float", parseInt, 1e30, nil, true},
		{"int from huge json.Number", parseInt, json.Number("99999999999999999999"), nil, true},
		{"float from int", parseFloat, 3, 3.0, false},
		{"float from string", parseFloat, "2.5", 2.5, false},
		{"float from junk", parseFloat, "x", nil, true},
		{"float from int8", parseFloat, int8(-3), -3.0, false},
		{"float from int16", parseFloat, int16(300), 300.0, false},
		{"float from uint", parseFloat, uint(5), 5.0, false},
		{"float from uint64", parseFloat, uint64(1 << 40), float64(1 << 40), false},
		{"bool from string", parseBool, "true", true, false},
		{"bool from zero", parseBool, 0, false, false},
		{"bool from number", parseBool, 2.0, true, false},
		{"bool from junk", parseBool, "maybe", nil, true},
		{"bool from uint8", parseBool, uint8(1), true, false},
		{"bool from int16 zero", parseBool, int16(0), false, false},
		{"id nil", parseID, nil, nil, false},
		{"id int", parseID, 1, 1, false},
		{"id json float", parseID, float64(3), 3, false},
		{"id map", parseID, map[string]any{}, nil, true},
		{"uuid empty", parseUUID, "", "", false},
		{"uuid upper", parseUUID, "6BA7B810-9DAD-11D1-80B4-00C04FD430C8", "6ba7b810-9dad-11d1-80b4-00c04fd430c8", false},
		{"uuid invalid", parseUUID, "nope", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.parse(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parse(%v) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parse(%v) = %#v, want %#v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestIDLooseEquality(t *testing.T) {
	tests := []struct {
		a, b any
		want bool
	}{
		{nil, nil, true},
		{nil, 0, false},
		{1, "1", true},
		{1, 2, false},
		{"a", "a", true},
	}

	for _, tt := range tests {
		if got := ID.Equal(tt.a, tt.b); got != tt.want {
			t.Errorf("Equal(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestUUIDDefault(t *testing.T) {
	m := UUID(fixedIDs{id: "fixed"})
	if got := m.Default.(func() any)(); got != "fixed" {
		t.Errorf("default = %v, want fixed", got)
	}

	random := UUID(nil).Default.(func() any)()
	if _, err := uuid.Parse(random.(string)); err != nil {
		t.Errorf("default %v is not a uuid: %v", random, err)
	}
}
