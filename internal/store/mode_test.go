package store

import "testing"

func TestParseMode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Mode
		wantErr bool
	}{
		{name: "always", input: "always", want: ModeAlways},
		{name: "ifavailable", input: "ifavailable", want: ModeIfAvailable},
		{name: "never", input: "never", want: ModeNever},
		{name: "empty defaults to ifavailable", input: "", want: ModeIfAvailable},
		{name: "unknown value", input: "sometimes", wantErr: true},
		{name: "wrong case", input: "Always", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMode(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseMode(%q) succeeded, want error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMode(%q) failed: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseMode(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestModeString(t *testing.T) {
	for _, m := range []Mode{ModeNever, ModeIfAvailable, ModeAlways} {
		parsed, err := ParseMode(m.String())
		if err != nil {
			t.Errorf("String/Parse mismatch for %v: %v", m, err)
		}
		if parsed != m {
			t.Errorf("ParseMode(%q) = %v, want %v", m.String(), parsed, m)
		}
	}
}
