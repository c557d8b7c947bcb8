package sink

import (
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"github.com/l1jgo/zonelights/internal/lighting"
)

type recorder struct {
	frames   []Frame
	released []int32
}

func (r *recorder) OnFrame(f Frame)        { r.frames = append(r.frames, f) }
func (r *recorder) OnRelease(zoneID int32) { r.released = append(r.released, zoneID) }

func testCatalog() *lighting.Catalog {
	return lighting.NewCatalog([]lighting.Descriptor{
		{X: 0, R: 255, G: 0, B: 0},
		{X: 50, R: 0, G: 1, B: 0},
		{X: 900, R: 0, G: 0, B: 1},
	}, lighting.DefaultCatalogOptions())
}

func TestFrameBuffer_SnapshotsAreIndependent(t *testing.T) {
	cat := testCatalog()
	sched := lighting.NewScheduler(cat, lighting.DefaultParams())
	buf := NewFrameBuffer()
	rec := &recorder{}
	buf.Subscribe(rec)
	buf.SetZone(4, "Giran")

	lighting.Attach(cat, buf)
	sched.Force()
	sched.Tick(100*time.Millisecond, mgl64.Vec3{})
	buf.SetViewpoint(mgl64.Vec3{1, 2, 3})
	lighting.Publish(cat, buf, 1)

	sched.Force()
	sched.Tick(100*time.Millisecond, mgl64.Vec3{})
	lighting.Publish(cat, buf, 2)

	if len(rec.frames) != 2 {
		t.Fatalf("got %d frames", len(rec.frames))
	}
	f1, f2 := rec.frames[0], rec.frames[1]
	if f1.ZoneID != 4 || f1.Zone != "Giran" || f1.Viewpoint != (mgl64.Vec3{1, 2, 3}) {
		t.Fatalf("frame header %+v", f1)
	}
	if len(f1.Lights) != 3 || f1.Visible() != 2 {
		t.Fatalf("frame 1 lights=%d visible=%d", len(f1.Lights), f1.Visible())
	}
	if f1.Lights[0].Color != (lighting.Color{1, 0, 0}) || f1.Lights[1].Position.X() != 50 {
		t.Fatalf("attach data missing: %+v", f1.Lights[:2])
	}
	if f1.Lights[0].Intensity == f2.Lights[0].Intensity {
		t.Fatal("second frame overwrote the first frame's snapshot")
	}
}

func TestFrameBuffer_ReleaseNotifiesAndClears(t *testing.T) {
	buf := NewFrameBuffer()
	rec := &recorder{}
	buf.Subscribe(rec)
	buf.SetZone(7, "Oren")
	lighting.Attach(testCatalog(), buf)
	buf.ReleaseAll()
	buf.EndFrame(9)

	if len(rec.released) != 1 || rec.released[0] != 7 {
		t.Fatalf("released = %v", rec.released)
	}
	if n := len(rec.frames[0].Lights); n != 0 {
		t.Fatalf("frame after release still carries %d lights", n)
	}
}

func TestMulti_ForwardsOptionalInterfaces(t *testing.T) {
	a, b := NewFrameBuffer(), NewFrameBuffer()
	ra, rb := &recorder{}, &recorder{}
	a.Subscribe(ra)
	b.Subscribe(rb)
	log := NewLogSink(zap.NewNop())
	m := Multi{a, log, b}

	m.SetZone(2, "Heine")
	m.SetViewpoint(mgl64.Vec3{5, 5, 5})
	cat := testCatalog()
	lighting.Attach(cat, m)
	lighting.Publish(cat, m, 3)

	for i, r := range []*recorder{ra, rb} {
		if len(r.frames) != 1 || r.frames[0].ZoneID != 2 || r.frames[0].Tick != 3 {
			t.Fatalf("sink %d frames %+v", i, r.frames)
		}
	}
	if log.Handles() != 3 {
		t.Fatalf("log sink holds %d handles", log.Handles())
	}
	m.ReleaseAll()
	if log.Handles() != 0 || len(ra.released) != 1 || len(rb.released) != 1 {
		t.Fatal("release not forwarded")
	}
}

func TestLogSink_CountsFlips(t *testing.T) {
	s := NewLogSink(zap.NewNop())
	s.SetPosition(0, mgl64.Vec3{})
	s.SetVisible(0, true)
	s.SetVisible(0, true)
	s.SetVisible(0, false)
	if s.flips != 2 {
		t.Fatalf("flips = %d", s.flips)
	}
}
