package domain

import (
	"math"
	"testing"
)

func TestNewNodePosition(t *testing.T) {
	t.Run("creates position with defaults", func(t *testing.T) {
		pos := NewNodePosition("node1", Vec3{100.5, 200.5, -3})

		if pos.NodeID != "node1" {
			t.Errorf("expected NodeID 'node1', got %s", pos.NodeID)
		}
		if pos.Vec() != (Vec3{100.5, 200.5, -3}) {
			t.Errorf("expected (100.5, 200.5, -3), got %+v", pos.Vec())
		}
		if pos.Pinned {
			t.Error("expected Pinned to be false by default")
		}
	})
}

func TestVec3(t *testing.T) {
	a := Vec3{1, 2, 2}
	b := Vec3{3, 4, 6}

	if got := a.Len(); got != 3 {
		t.Errorf("expected length 3, got %f", got)
	}
	if got := a.Add(b); got != (Vec3{4, 6, 8}) {
		t.Errorf("unexpected sum %+v", got)
	}
	if got := b.Sub(a); got != (Vec3{2, 2, 4}) {
		t.Errorf("unexpected difference %+v", got)
	}
	if got := a.Lerp(b, 0.5); got != (Vec3{2, 3, 4}) {
		t.Errorf("unexpected midpoint %+v", got)
	}
	if got := a.Lerp(b, 1); got != b {
		t.Errorf("expected lerp(1) to reach b, got %+v", got)
	}
}

func TestVec3Finite(t *testing.T) {
	if !(Vec3{1, -2, 1e308}).Finite() {
		t.Error("expected large values to be finite")
	}
	for _, v := range []Vec3{{math.NaN(), 0, 0}, {0, math.Inf(1), 0}, {0, 0, math.Inf(-1)}} {
		if v.Finite() {
			t.Errorf("expected %+v to be non-finite", v)
		}
	}
}
