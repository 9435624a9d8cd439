package internal

import "testing"

// TestFlattenNestedAndArray tests that a nested map with an array is flattened correctly.
func TestFlattenNestedAndArray(t *testing.T) {
	input := map[string]interface{}{
		"type": "server_failed",
		"data": map[string]interface{}{
			"id":        "evt_1",
			"serviceId": "srv_1",
		},
		"tags": []interface{}{"a", "b"},
	}

	flat := Flatten(input)
	if flat["type"] != "server_failed" {
		t.Fatalf("expected type to survive flattening, got %v", flat["type"])
	}
	if flat["data.id"] != "evt_1" {
		t.Fatalf("expected data.id to be evt_1, got %v", flat["data.id"])
	}
	if flat["data.serviceId"] != "srv_1" {
		t.Fatalf("expected data.serviceId to be srv_1, got %v", flat["data.serviceId"])
	}
	if flat["tags[0]"] != "a" || flat["tags[1]"] != "b" {
		t.Fatalf("expected indexed array keys, got %v", flat)
	}
	if _, ok := flat["tags"]; !ok {
		t.Fatalf("expected tags to exist as a whole array")
	}
}
