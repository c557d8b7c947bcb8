package trace

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"github.com/l1jgo/zonelights/internal/lighting"
	"github.com/l1jgo/zonelights/internal/sink"
)

func frame(tick uint64, zone int32, intensity float64) sink.Frame {
	return sink.Frame{
		Tick:      tick,
		ZoneID:    zone,
		Zone:      "z",
		Viewpoint: mgl64.Vec3{float64(tick), 0, 0},
		Lights: []sink.LightState{
			{ID: 0, Position: mgl64.Vec3{1, 2, 3}, Color: lighting.Color{1, 0, 0}, Range: 60, Intensity: intensity, Visible: intensity > 0},
		},
	}
}

func TestRecorder_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	r := NewRecorder(dir, 64, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	r.OnFrame(frame(1, 4, 0.8))
	r.OnFrame(frame(2, 4, 1.6))
	r.OnFrame(frame(3, 4, 2.3))
	r.OnRelease(4)
	r.OnFrame(frame(4, 7, 0))
	cancel()
	<-done

	if r.Dropped() != 0 {
		t.Fatalf("dropped = %d", r.Dropped())
	}
	files := r.Files()
	if len(files) != 2 {
		t.Fatalf("files = %v", files)
	}
	if !strings.HasPrefix(filepath.Base(files[0]), "lights-4-") || !strings.HasSuffix(files[0], ".jsonl.zst") {
		t.Fatalf("file name = %s", files[0])
	}

	got, err := ReadFrames(files[0])
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("zone 4 frames = %d", len(got))
	}
	for i, f := range got {
		want := frame(uint64(i+1), 4, []float64{0.8, 1.6, 2.3}[i])
		if f.Tick != want.Tick || f.Viewpoint != want.Viewpoint || f.Lights[0] != want.Lights[0] {
			t.Fatalf("frame %d = %+v, want %+v", i, f, want)
		}
	}

	got, err = ReadFrames(files[1])
	if err != nil || len(got) != 1 || got[0].ZoneID != 7 {
		t.Fatalf("zone 7 = %+v, %v", got, err)
	}
}

func TestRecorder_DropsWhenFull(t *testing.T) {
	r := NewRecorder(t.TempDir(), 1, zap.NewNop())
	r.OnFrame(frame(1, 1, 0))
	r.OnFrame(frame(2, 1, 0))
	if r.Dropped() != 1 {
		t.Fatalf("dropped = %d", r.Dropped())
	}
}

func TestReadFrames_Missing(t *testing.T) {
	if _, err := ReadFrames(filepath.Join(t.TempDir(), "none.jsonl.zst")); err == nil {
		t.Fatal("expected error")
	}
}
