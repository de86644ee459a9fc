package app

import (
	"sync"
	"testing"

	"mcs-go/internal/testutil"
)

func TestNewOperation(t *testing.T) {
	ids := testutil.NewStubIDGenerator()

	op := NewOperation("Migrate", ids)
	if op.ID != "id-1" {
		t.Errorf("ID = %q, want %q", op.ID, "id-1")
	}
	if op.Name != "Migrate" {
		t.Errorf("Name = %q, want %q", op.Name, "Migrate")
	}
	if op.Status() != "success" || op.Failed() {
		t.Errorf("Status() = %q, want success", op.Status())
	}

	op.Fail()
	if !op.Failed() || op.Status() != "error" {
		t.Errorf("Status() after Fail() = %q, want error", op.Status())
	}

	op.Succeed()
	if op.Failed() {
		t.Errorf("Status() after Succeed() = %q, want success", op.Status())
	}
}

func TestOperation_ConcurrentStatus(t *testing.T) {
	op := NewOperation("Serve", testutil.NewStubIDGenerator())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				op.Fail()
			} else {
				op.Succeed()
			}
			_ = op.Failed()
		}(i)
	}
	wg.Wait()

	if s := op.Status(); s != "success" && s != "error" {
		t.Errorf("Status() = %q", s)
	}
}

func TestOperation_ShortID(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{id: "0f8c2a3e-5b7d-4c1e-9a2b-3d4e5f6a7b8c", want: "0f8c2a3e"},
		{id: "id-1", want: "id-1"},
		{id: "", want: ""},
	}

	for _, tt := range tests {
		op := &Operation{ID: tt.id}
		if got := op.ShortID(); got != tt.want {
			t.Errorf("ShortID(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}
