package snowflake

import "testing"

func TestGetID(t *testing.T) {
	if err := Init(1); err != nil {
		t.Fatalf("Init: %v", err)
	}

	seen := make(map[uint64]bool)
	for i := 0; i < 1000; i++ {
		id, err := GetID()
		if err != nil {
			t.Fatalf("GetID: %v", err)
		}
		if id == 0 {
			t.Fatal("zero id")
		}
		if seen[id] {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = true
	}
}
