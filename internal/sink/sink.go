// Package sink holds the RenderSink implementations used by the server:
// a zap logging sink, a fan-out and a frame buffer that hands immutable
// per-frame copies to consumers running on other goroutines.
package sink

import (
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"github.com/l1jgo/zonelights/internal/lighting"
)

// ZoneSink is implemented by sinks that label output with the loaded zone.
type ZoneSink interface {
	SetZone(id int32, name string)
}

// ViewpointSink is implemented by sinks that record the viewer position.
type ViewpointSink interface {
	SetViewpoint(p mgl64.Vec3)
}

// Multi fans every call out to each sink in order.
type Multi []lighting.RenderSink

func (m Multi) SetPosition(id lighting.ID, p mgl64.Vec3) {
	for _, s := range m {
		s.SetPosition(id, p)
	}
}

func (m Multi) SetColor(id lighting.ID, c lighting.Color, rng float64) {
	for _, s := range m {
		s.SetColor(id, c, rng)
	}
}

func (m Multi) SetIntensity(id lighting.ID, v float64) {
	for _, s := range m {
		s.SetIntensity(id, v)
	}
}

func (m Multi) SetVisible(id lighting.ID, v bool) {
	for _, s := range m {
		s.SetVisible(id, v)
	}
}

func (m Multi) ReleaseAll() {
	for _, s := range m {
		s.ReleaseAll()
	}
}

func (m Multi) EndFrame(tick uint64) {
	for _, s := range m {
		if fs, ok := s.(lighting.FrameSink); ok {
			fs.EndFrame(tick)
		}
	}
}

func (m Multi) SetZone(id int32, name string) {
	for _, s := range m {
		if zs, ok := s.(ZoneSink); ok {
			zs.SetZone(id, name)
		}
	}
}

func (m Multi) SetViewpoint(p mgl64.Vec3) {
	for _, s := range m {
		if vs, ok := s.(ViewpointSink); ok {
			vs.SetViewpoint(p)
		}
	}
}

// LogSink stands in for a renderer: it keeps one handle per light and logs
// visibility flips at debug level.
type LogSink struct {
	log     *zap.Logger
	zone    int32
	visible map[lighting.ID]bool
	flips   int
}

func NewLogSink(log *zap.Logger) *LogSink {
	return &LogSink{log: log, visible: make(map[lighting.ID]bool)}
}

func (s *LogSink) SetZone(id int32, _ string) { s.zone = id }

func (s *LogSink) SetPosition(id lighting.ID, _ mgl64.Vec3) {
	if _, ok := s.visible[id]; !ok {
		s.visible[id] = false
	}
}

func (s *LogSink) SetColor(lighting.ID, lighting.Color, float64) {}
func (s *LogSink) SetIntensity(lighting.ID, float64)             {}

func (s *LogSink) SetVisible(id lighting.ID, v bool) {
	if s.visible[id] == v {
		return
	}
	s.visible[id] = v
	s.flips++
	if v {
		s.log.Debug("light on", zap.Int32("zone", s.zone), zap.Int32("light", int32(id)))
	} else {
		s.log.Debug("light off", zap.Int32("zone", s.zone), zap.Int32("light", int32(id)))
	}
}

func (s *LogSink) ReleaseAll() {
	if len(s.visible) > 0 {
		s.log.Info("released zone lights",
			zap.Int32("zone", s.zone),
			zap.Int("handles", len(s.visible)),
			zap.Int("flips", s.flips))
	}
	s.visible = make(map[lighting.ID]bool)
	s.flips = 0
}

// Handles is the number of lights the sink currently holds.
func (s *LogSink) Handles() int { return len(s.visible) }
