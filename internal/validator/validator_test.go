package validator

import (
	"testing"

	appErrors "fluoride-monitor/pkg/errors"
)

type nested struct {
	Latitude *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
}

type sample struct {
	Name     string   `json:"name" validate:"required"`
	Level    *float64 `json:"level" validate:"required,gte=0"`
	State    string   `json:"state" validate:"omitempty,relay_state"`
	Metadata *nested  `json:"metadata"`
}

func TestValidateCollectsEveryField(t *testing.T) {
	lat := 120.0
	err := Validate(&sample{State: "blink", Metadata: &nested{Latitude: &lat}}, Messages{
		"name": "name is required",
	})

	ve, ok := appErrors.AsValidation(err)
	if !ok {
		t.Fatalf("Validate() error = %v, want ValidationError", err)
	}

	got := map[string]string{}
	for _, f := range ve.Fields {
		got[f.Field] = f.Message
	}
	want := map[string]string{
		"name":              "name is required",
		"level":             "level is required",
		"state":             "state is invalid",
		"metadata.latitude": "metadata.latitude must be at most 90",
	}
	if len(got) != len(want) {
		t.Fatalf("fields = %v, want %v", got, want)
	}
	for field, msg := range want {
		if got[field] != msg {
			t.Errorf("field %q message = %q, want %q", field, got[field], msg)
		}
	}
}

func TestValidatePasses(t *testing.T) {
	zero := 0.0
	if err := Validate(&sample{Name: "x", Level: &zero, State: "on"}, nil); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

type identified struct {
	ID string `json:"id" validate:"required,device_id"`
}

func TestValidateDeviceIDUsesRuleMessage(t *testing.T) {
	messages := Messages{
		"id":           "id is required",
		"id:device_id": "id must be printable",
	}

	tests := []struct {
		id, want string
	}{
		{"", "id is required"},
		{"esp\u200b01", "id must be printable"},
		{"esp\t01", "id must be printable"},
		{"esp-01", ""},
	}
	for _, tt := range tests {
		err := Validate(&identified{ID: tt.id}, messages)
		if tt.want == "" {
			if err != nil {
				t.Errorf("Validate(%q) error = %v", tt.id, err)
			}
			continue
		}
		ve, ok := appErrors.AsValidation(err)
		if !ok || len(ve.Fields) != 1 || ve.Fields[0].Message != tt.want {
			t.Errorf("Validate(%q) error = %v, want %q", tt.id, err, tt.want)
		}
	}
}

func TestMessagesFor(t *testing.T) {
	m := Messages{"name": "name is required"}
	if got := m.For("name"); got != "name is required" {
		t.Errorf("For(name) = %q", got)
	}
	if got := m.For("level"); got != "level is invalid" {
		t.Errorf("For(level) = %q", got)
	}
}
