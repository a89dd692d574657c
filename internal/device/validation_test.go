package device

import (
	"errors"
	"strings"
	"testing"
)

func TestIdentity_Validate(t *testing.T) {
	tests := []struct {
		name    string
		id      Identity
		wantErr bool
	}{
		{"valid", NewIdentity("therm-1", "temperature"), false},
		{"empty id", NewIdentity("", "temperature"), true},
		{"blank type", NewIdentity("therm-1", "  "), true},
		{"slash", NewIdentity("a/b", "temperature"), true},
		{"plus", NewIdentity("therm-1", "temp+"), true},
		{"too long", NewIdentity(strings.Repeat("x", maxIdentityPartLength+1), "switch"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.id.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidIdentity) {
				t.Errorf("Validate() error = %v, want ErrInvalidIdentity", err)
			}
		})
	}
}

func TestValidateDevice(t *testing.T) {
	tooMany := map[string]string{}
	for i := 0; i <= maxIdentifierKeys; i++ {
		tooMany[strings.Repeat("k", i+1)] = "v"
	}

	tests := []struct {
		name    string
		mutate  func(d *Device)
		wantErr error
	}{
		{"valid", func(*Device) {}, nil},
		{"long display name", func(d *Device) { d.DisplayName = strings.Repeat("n", maxDisplayNameLength+1) }, ErrInvalidDevice},
		{"empty parameter key", func(d *Device) { d.Parameters[""] = "x" }, ErrInvalidDevice},
		{"too many identifiers", func(d *Device) { d.CustomIdentifiers = tooMany }, ErrInvalidDevice},
		{"bad identity", func(d *Device) { d.Identity.ID = "" }, ErrInvalidIdentity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New(NewIdentity("win-1", "window"))
			tt.mutate(&d)
			err := ValidateDevice(d)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("ValidateDevice() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateDevice() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDevice_DeepCopyNormalisesNilMaps(t *testing.T) {
	d := Device{Identity: NewIdentity("relay-1", "switch")}
	cpy := d.DeepCopy()
	if cpy.Parameters == nil || cpy.CustomIdentifiers == nil {
		t.Error("DeepCopy() left nil maps")
	}
}
