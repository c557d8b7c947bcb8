package world

import (
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

func near(a, b mgl64.Vec3) bool {
	return a.ApproxEqualThreshold(b, 1e-9)
}

func TestCamera_OpenPathBounces(t *testing.T) {
	c := NewCamera()
	c.SetPath([]mgl64.Vec3{{0, 0, 0}, {10, 0, 0}, {10, 0, 10}}, 5, false)
	if !near(c.Position(), mgl64.Vec3{0, 0, 0}) {
		t.Fatalf("start = %v", c.Position())
	}

	steps := []struct {
		dt   time.Duration
		want mgl64.Vec3
	}{
		{time.Second, mgl64.Vec3{5, 0, 0}},
		{time.Second, mgl64.Vec3{10, 0, 0}},
		{time.Second, mgl64.Vec3{10, 0, 5}},
		{time.Second, mgl64.Vec3{10, 0, 10}},
		{time.Second, mgl64.Vec3{10, 0, 5}}, // turned around
		{3 * time.Second, mgl64.Vec3{0, 0, 0}},
		{time.Second, mgl64.Vec3{5, 0, 0}},
	}
	for i, st := range steps {
		c.Advance(st.dt)
		if !near(c.Position(), st.want) {
			t.Fatalf("step %d: pos = %v, want %v", i, c.Position(), st.want)
		}
	}
}

func TestCamera_LoopClosesPath(t *testing.T) {
	c := NewCamera()
	c.SetPath([]mgl64.Vec3{{0, 0, 0}, {10, 0, 0}, {10, 10, 0}, {0, 10, 0}}, 10, true)
	c.Advance(3 * time.Second) // on the closing edge
	if !near(c.Position(), mgl64.Vec3{0, 10, 0}) {
		t.Fatalf("pos = %v", c.Position())
	}
	c.Advance(500 * time.Millisecond)
	if !near(c.Position(), mgl64.Vec3{0, 5, 0}) {
		t.Fatalf("pos = %v", c.Position())
	}
	c.Advance(500 * time.Millisecond)
	if !near(c.Position(), mgl64.Vec3{0, 0, 0}) {
		t.Fatalf("lap end = %v", c.Position())
	}
}

func TestCamera_Holds(t *testing.T) {
	c := NewCamera()
	c.Advance(time.Second)
	if c.Position() != (mgl64.Vec3{}) {
		t.Fatal("empty camera moved")
	}
	c.Hold(mgl64.Vec3{3, 4, 5})
	c.Advance(time.Second)
	if c.Position() != (mgl64.Vec3{3, 4, 5}) {
		t.Fatalf("held camera at %v", c.Position())
	}
	c.SetPath([]mgl64.Vec3{{0, 0, 0}, {1, 0, 0}}, 0, true)
	c.Advance(time.Second)
	if c.Position() != (mgl64.Vec3{}) {
		t.Fatal("zero speed moved")
	}
}
