package commandstructure

import (
	"testing"
)

func TestGetStringParam(t *testing.T) {
	params := map[string]any{
		"key1": "value1",
		"key2": 123,
	}

	// Test existing string parameter
	if val := GetStringParam(params, "key1", "default"); val != "value1" {
		t.Errorf("Expected 'value1', got '%s'", val)
	}

	// Test non-string parameter
	if val := GetStringParam(params, "key2", "default"); val != "default" {
		t.Errorf("Expected 'default', got '%s'", val)
	}

	// Test non-existent parameter
	if val := GetStringParam(params, "key3", "default"); val != "default" {
		t.Errorf("Expected 'default', got '%s'", val)
	}
}

func TestGetIntParam(t *testing.T) {
	params := map[string]any{
		"key1": 123,
		"key2": int64(456),
		"key3": float64(789),
		"key4": "not-an-int",
	}

	// Test int parameter
	if val := GetIntParam(params, "key1", 0); val != 123 {
		t.Errorf("Expected 123, got %d", val)
	}

	// Test int64 parameter
	if val := GetIntParam(params, "key2", 0); val != 456 {
		t.Errorf("Expected 456, got %d", val)
	}

	// Test float64 parameter
	if val := GetIntParam(params, "key3", 0); val != 789 {
		t.Errorf("Expected 789, got %d", val)
	}

	// Test non-int parameter
	if val := GetIntParam(params, "key4", 999); val != 999 {
		t.Errorf("Expected 999, got %d", val)
	}

	// Test non-existent parameter
	if val := GetIntParam(params, "key5", 999); val != 999 {
		t.Errorf("Expected 999, got %d", val)
	}
}

func TestGetBoolParam(t *testing.T) {
	params := map[string]any{
		"key1": true,
		"key2": "FALSE",
		"key3": "maybe",
		"key4": 1,
	}

	if val := GetBoolParam(params, "key1", false); !val {
		t.Error("Expected true for bool parameter")
	}

	if val := GetBoolParam(params, "key2", true); val {
		t.Error("Expected false for string parameter 'FALSE'")
	}

	if val := GetBoolParam(params, "key3", true); !val {
		t.Error("Expected default for unrecognised string")
	}

	if val := GetBoolParam(params, "key4", false); val {
		t.Error("Expected default for non-bool parameter")
	}
}
