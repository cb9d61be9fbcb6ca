package netpulse

import (
	"testing"
	"time"
)

func TestKind_String(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{Idle, "idle"},
		{Loading, "loading"},
		{Success, "success"},
		{Failure, "failure"},
		{Kind(42), "idle"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
		text, err := tt.kind.MarshalText()
		if err != nil || string(text) != tt.want {
			t.Errorf("Kind(%d).MarshalText() = %q, %v", tt.kind, text, err)
		}
	}
}

func TestResult_Transitions(t *testing.T) {
	at := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	later := at.Add(5 * time.Second)

	var r Result[int]
	if r.Kind != Idle || r.IsLoading() || r.Err() != "" {
		t.Fatalf("zero Result = %+v, want idle", r)
	}

	r = r.loading(1)
	if !r.IsLoading() || r.Seq != 1 || r.HasData {
		t.Fatalf("loading = %+v", r)
	}

	r = r.success(7, at, 1)
	if r.Kind != Success || r.Data != 7 || !r.HasData || !r.FetchedAt.Equal(at) {
		t.Fatalf("success = %+v", r)
	}

	r = r.loading(2)
	if r.Kind != Loading || r.Data != 7 || !r.HasData {
		t.Fatalf("loading after success dropped data: %+v", r)
	}

	r = r.failure("boom", later, 2)
	if r.Kind != Failure || r.Err() != "boom" || !r.OccurredAt.Equal(later) {
		t.Fatalf("failure = %+v", r)
	}
	if r.Data != 7 || !r.FetchedAt.Equal(at) {
		t.Errorf("failure dropped stale data: %+v", r)
	}

	r = r.loading(3)
	if r.Message != "" || !r.OccurredAt.IsZero() || r.Err() != "" {
		t.Errorf("loading kept failure fields: %+v", r)
	}

	r = r.failure("again", later, 3)
	r = r.success(9, later, 4)
	if r.Message != "" || !r.OccurredAt.IsZero() || r.Data != 9 {
		t.Errorf("success kept failure fields: %+v", r)
	}
}
