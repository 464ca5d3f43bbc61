package segment

import (
	"context"
	"errors"
	"testing"

	"rentora/internal/marketplace"
)

type fakeSegmentAPI struct {
	calls int
	path  marketplace.SegmentPath
	err   error
}

func (f *fakeSegmentAPI) SegmentPG(context.Context, int) (marketplace.SegmentPath, error) {
	f.calls++
	return f.path, f.err
}

func TestThresholdBoundary(t *testing.T) {
	if Threshold(29) != marketplace.PathSelfServe {
		t.Fatal("29 beds must be self_serve")
	}
	if Threshold(30) != marketplace.PathSalesAssist {
		t.Fatal("30 beds must be sales_assist")
	}
	if Threshold(0) != marketplace.PathSelfServe {
		t.Fatal("0 beds must be self_serve")
	}
}

func TestRemoteUsedForAuthenticatedOperator(t *testing.T) {
	api := &fakeSegmentAPI{path: marketplace.PathSalesAssist}
	d := NewDecider(api)
	got := d.Decide(context.Background(), true, RolePGOperator, 5)
	if got != marketplace.PathSalesAssist {
		t.Fatalf("got %s", got)
	}
	if api.calls != 1 {
		t.Fatalf("calls = %d", api.calls)
	}
}

func TestDecisionCached(t *testing.T) {
	api := &fakeSegmentAPI{path: marketplace.PathSelfServe}
	d := NewDecider(api)
	_ = d.Decide(context.Background(), true, RolePGOperator, 8)
	_ = d.Decide(context.Background(), true, RolePGOperator, 8)
	if api.calls != 1 {
		t.Fatalf("remote called %d times", api.calls)
	}
}

func TestFallbackPaths(t *testing.T) {
	api := &fakeSegmentAPI{path: marketplace.PathSalesAssist}
	d := NewDecider(api)

	// Unauthenticated caller.
	if got := d.Decide(context.Background(), false, RolePGOperator, 10); got != marketplace.PathSelfServe {
		t.Fatalf("unauthenticated: %s", got)
	}
	// Wrong role.
	if got := d.Decide(context.Background(), true, "tenant", 10); got != marketplace.PathSelfServe {
		t.Fatalf("wrong role: %s", got)
	}
	if api.calls != 0 {
		t.Fatalf("remote consulted: %d", api.calls)
	}

	// Remote failure.
	failing := NewDecider(&fakeSegmentAPI{err: errors.New("timeout")})
	if got := failing.Decide(context.Background(), true, RolePGOperator, 40); got != marketplace.PathSalesAssist {
		t.Fatalf("remote failure: %s", got)
	}

	// No client at all.
	none := NewDecider(nil)
	if got := none.Decide(context.Background(), true, RolePGOperator, 40); got != marketplace.PathSalesAssist {
		t.Fatalf("nil client: %s", got)
	}
}
