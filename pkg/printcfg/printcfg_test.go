package printcfg

import "testing"

func TestSetDeserialize(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr bool
		stored  bool
	}{
		{"known float", "layer_height", "0.2", false, true},
		{"known int", "perimeters", "4", false, true},
		{"known bool", "support_material", "1", false, true},
		{"known string", "seam_position", "rear", false, true},
		{"unknown key ignored", "does_not_exist", "whatever", false, false},
		{"bad float", "layer_height", "thick", true, false},
		{"bad int", "perimeters", "4.5", true, false},
		{"bad bool", "support_material", "yes", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Config
			err := c.SetDeserialize(tt.key, tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SetDeserialize(%q, %q) error = %v, wantErr %v", tt.key, tt.value, err, tt.wantErr)
			}
			if c.Has(tt.key) != tt.stored {
				t.Errorf("Has(%q) = %v, want %v", tt.key, c.Has(tt.key), tt.stored)
			}
		})
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	var c Config
	if err := c.SetDeserialize("layer_height", "0.15"); err != nil {
		t.Fatalf("SetDeserialize: %v", err)
	}
	v, ok := c.Serialize("layer_height")
	if !ok || v != "0.15" {
		t.Errorf("Serialize = %q, %v; want 0.15, true", v, ok)
	}
	if _, ok := c.Serialize("perimeters"); ok {
		t.Error("Serialize of unset key should report absent")
	}
}

func TestKeysSorted(t *testing.T) {
	var c Config
	for _, k := range []string{"temperature", "extruder", "layer_height"} {
		if err := c.SetDeserialize(k, "1"); err != nil {
			t.Fatalf("SetDeserialize(%q): %v", k, err)
		}
	}
	keys := c.Keys()
	want := []string{"extruder", "layer_height", "temperature"}
	if len(keys) != len(want) {
		t.Fatalf("Keys() = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("Keys()[%d] = %q, want %q", i, keys[i], want[i])
		}
	}
}

func TestCloneIsDeep(t *testing.T) {
	var c Config
	c.SetDeserialize("extruder", "1")
	clone := c.Clone()
	clone.SetDeserialize("extruder", "2")

	v, _ := c.Serialize("extruder")
	if v != "1" {
		t.Errorf("original mutated through clone: %q", v)
	}
	if c.Equal(&clone) {
		t.Error("Equal should be false after divergence")
	}
}

func TestApplyAndEqual(t *testing.T) {
	var a, b Config
	a.SetDeserialize("extruder", "1")
	b.Apply(&a)
	if !a.Equal(&b) {
		t.Error("Apply should make configs equal")
	}
	b.Erase("extruder")
	if b.Len() != 0 {
		t.Errorf("Len after erase = %d, want 0", b.Len())
	}
}
