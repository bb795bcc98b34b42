package domain_test

import (
	"encoding/json"
	"testing"

	"go.trai.ch/gantry/internal/core/domain"
)

func TestInternedString(t *testing.T) {
	s1 := "hello"
	s2 := "hello"

	is1 := domain.NewInternedString(s1)
	is2 := domain.NewInternedString(s2)

	// Verify that the underlying handles are equal
	if is1.Value() != is2.Value() {
		t.Errorf("Expected handles to be equal for identical strings, got %v and %v", is1.Value(), is2.Value())
	}

	// Verify String() method
	if is1.String() != s1 {
		t.Errorf("Expected String() to return %q, got %q", s1, is1.String())
	}
}

func TestInternedStringZero(t *testing.T) {
	var zero domain.InternedString
	if zero.String() != "" {
		t.Errorf("Expected zero value to stringify to empty, got %q", zero.String())
	}
}

func TestInternedStringJSON(t *testing.T) {
	t.Run("Marshal and Unmarshal preserve string value", func(t *testing.T) {
		original := domain.NewInternedString("test (python-version=3.7)")

		data, err := json.Marshal(original)
		if err != nil {
			t.Fatalf("Failed to marshal InternedString: %v", err)
		}

		expectedJSON := `"test (python-version=3.7)"`
		if string(data) != expectedJSON {
			t.Errorf("Expected JSON %q, got %q", expectedJSON, string(data))
		}

		var unmarshaled domain.InternedString
		err = json.Unmarshal(data, &unmarshaled)
		if err != nil {
			t.Fatalf("Failed to unmarshal InternedString: %v", err)
		}

		if unmarshaled.String() != original.String() {
			t.Errorf("Expected unmarshaled string %q, got %q", original.String(), unmarshaled.String())
		}
	})

	t.Run("Marshal and Unmarshal in struct", func(t *testing.T) {
		type TestStruct struct {
			Name domain.InternedString `json:"name"`
		}

		original := TestStruct{
			Name: domain.NewInternedString("build"),
		}

		data, err := json.Marshal(original)
		if err != nil {
			t.Fatalf("Failed to marshal struct: %v", err)
		}

		expectedJSON := `{"name":"build"}`
		if string(data) != expectedJSON {
			t.Errorf("Expected JSON %q, got %q", expectedJSON, string(data))
		}

		var unmarshaled TestStruct
		err = json.Unmarshal(data, &unmarshaled)
		if err != nil {
			t.Fatalf("Failed to unmarshal struct: %v", err)
		}

		if unmarshaled.Name.String() != original.Name.String() {
			t.Errorf("Expected unmarshaled name %q, got %q", original.Name.String(), unmarshaled.Name.String())
		}
	})
}

func TestInternStrings(t *testing.T) {
	t.Run("Convert slice of strings to InternedStrings", func(t *testing.T) {
		strs := []string{"build", "test", "deploy"}

		interned := domain.InternStrings(strs)

		if len(interned) != len(strs) {
			t.Errorf("Expected %d interned strings, got %d", len(strs), len(interned))
		}

		for i, expected := range strs {
			if interned[i].String() != expected {
				t.Errorf("Expected interned string at index %d to be %q, got %q", i, expected, interned[i].String())
			}
		}
	})

	t.Run("Empty slice returns nil", func(t *testing.T) {
		if got := domain.InternStrings(nil); got != nil {
			t.Errorf("Expected nil, got %d elements", len(got))
		}
	})

	t.Run("Duplicate strings share handles via interning", func(t *testing.T) {
		interned := domain.InternStrings([]string{"job", "job"})

		if interned[0].Value() != interned[1].Value() {
			t.Errorf("Expected handles to be equal for identical strings")
		}
	})
}
