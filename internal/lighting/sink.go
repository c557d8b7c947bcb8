package lighting

import "github.com/go-gl/mathgl/mgl64"

// RenderSink receives light state. It owns whatever drawable objects it
// creates for a light id; the core never touches rendering resources.
type RenderSink interface {
	SetPosition(id ID, p mgl64.Vec3)
	SetColor(id ID, c Color, rng float64)
	SetIntensity(id ID, v float64)
	SetVisible(id ID, v bool)
	// ReleaseAll drops every drawable handed out for the current zone.
	ReleaseAll()
}

// FrameSink is implemented by sinks that want to know where a frame ends.
type FrameSink interface {
	RenderSink
	EndFrame(tick uint64)
}

// Attach announces the immutable part of every light once per zone load.
func Attach(c *Catalog, s RenderSink) {
	for _, l := range c.lights {
		s.SetPosition(l.ID, l.Position)
		s.SetColor(l.ID, l.Color, l.Range)
		s.SetIntensity(l.ID, l.intensity)
		s.SetVisible(l.ID, l.visible)
	}
}

// Publish pushes the runtime state of every light and closes the frame.
func Publish(c *Catalog, s RenderSink, tick uint64) {
	for _, l := range c.lights {
		s.SetIntensity(l.ID, l.intensity)
		s.SetVisible(l.ID, l.visible)
	}
	if fs, ok := s.(FrameSink); ok {
		fs.EndFrame(tick)
	}
}
