package schema

import "testing"

func TestValidate_DeviceRecord(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name    string
		record  map[string]any
		wantErr bool
	}{
		{
			name: "string id",
			record: map[string]any{
				"id": "12", "label": "Porch", "type": "Virtual Switch",
				"capabilities": []any{"Switch"},
				"attributes":   map[string]any{"switch": "on"},
			},
		},
		{
			name:   "numeric id",
			record: map[string]any{"id": float64(1), "label": "Hall", "type": "Fibaro Motion Sensor ZW5"},
		},
		{
			name:    "missing label",
			record:  map[string]any{"id": "3", "type": "Virtual Switch"},
			wantErr: true,
		},
		{
			name:    "missing type",
			record:  map[string]any{"id": "3", "label": "Kitchen"},
			wantErr: true,
		},
		{
			name:    "label not a string",
			record:  map[string]any{"id": "3", "label": float64(4), "type": "Virtual Switch"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(DeviceRecord, tt.record)
			if tt.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidate_UnknownSchema(t *testing.T) {
	v := NewValidator()
	if err := v.Validate("thermostat", map[string]any{"id": "1"}); err == nil {
		t.Error("expected error for unknown schema")
	}
}

func TestNewValidator_CompilesBuiltins(t *testing.T) {
	v := NewValidator()
	if len(v.schemas) != len(documents) {
		t.Errorf("compiled: got %d schemas, want %d", len(v.schemas), len(documents))
	}
	for name := range documents {
		if v.schemas[name] == nil {
			t.Errorf("schema %s not compiled", name)
		}
	}
}
