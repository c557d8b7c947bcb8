package zone

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"github.com/l1jgo/zonelights/internal/core/event"
	"github.com/l1jgo/zonelights/internal/data"
	"github.com/l1jgo/zonelights/internal/lighting"
	"github.com/l1jgo/zonelights/internal/sink"
)

// ErrUnknownZone is returned by Load when no source knows the zone id.
var ErrUnknownZone = errors.New("unknown zone")

// Active is the loaded zone: catalog, octree and scheduler live and die
// together.
type Active struct {
	ID        int32
	Name      string
	Source    string
	Catalog   *lighting.Catalog
	Scheduler *lighting.Scheduler
	Camera    data.CameraPath
	LoadedAt  time.Time
}

// Manager owns the zone lifecycle. Game loop only.
type Manager struct {
	params  lighting.Params
	opts    lighting.CatalogOptions
	sources []Source
	sink    lighting.RenderSink
	bus     *event.Bus
	log     *zap.Logger

	active *Active
}

// NewManager creates a manager. Sources are consulted in order; the first
// one that knows a zone wins.
func NewManager(
	params lighting.Params,
	opts lighting.CatalogOptions,
	sources []Source,
	rs lighting.RenderSink,
	bus *event.Bus,
	log *zap.Logger,
) *Manager {
	return &Manager{
		params:  params,
		opts:    opts,
		sources: sources,
		sink:    rs,
		bus:     bus,
		log:     log,
	}
}

// Active returns the loaded zone, or nil.
func (m *Manager) Active() *Active { return m.active }

func (m *Manager) Sink() lighting.RenderSink { return m.sink }

func (m *Manager) lookup(ctx context.Context, id int32) (*Info, string, error) {
	for _, s := range m.sources {
		info, ok, err := s.Lookup(ctx, id)
		if err != nil {
			return nil, "", fmt.Errorf("%s source: %w", s.Name(), err)
		}
		if ok {
			return info, s.Name(), nil
		}
	}
	return nil, "", fmt.Errorf("zone %d: %w", id, ErrUnknownZone)
}

// Load replaces the active zone with id. On lookup failure the current zone
// stays loaded.
func (m *Manager) Load(ctx context.Context, id int32) (*Active, error) {
	info, src, err := m.lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	m.Unload()

	start := time.Now()
	cat := lighting.NewCatalog(info.Lights, m.opts)
	params := m.params.With(info.Tuning)
	sched := lighting.NewScheduler(cat, params)

	a := &Active{
		ID:        info.ZoneID,
		Name:      info.Name,
		Source:    src,
		Catalog:   cat,
		Scheduler: sched,
		Camera:    info.Camera,
		LoadedAt:  start,
	}

	if zs, ok := m.sink.(sink.ZoneSink); ok {
		zs.SetZone(a.ID, a.Name)
	}
	lighting.Attach(cat, m.sink)
	// light the first frame instead of waiting a full interval
	sched.Force()
	m.active = a

	shape := cat.Tree().Shape()
	m.log.Info("zone loaded",
		zap.Int32("zone", a.ID),
		zap.String("name", a.Name),
		zap.String("source", src),
		zap.Int("lights", cat.Len()),
		zap.Int("skipped", cat.Skipped()),
		zap.Int("max_active", params.MaxActive),
		zap.Float64("radius", params.MaxQueryRadius),
		zap.Int("nodes", shape.Nodes),
		zap.Int("depth", shape.MaxDepth),
		zap.Int("overfull", shape.Overfull),
		zap.Duration("took", time.Since(start)),
	)
	if cat.Skipped() > 0 {
		m.log.Warn("zone lights skipped (non-finite values)",
			zap.Int32("zone", a.ID), zap.Int("count", cat.Skipped()))
	}

	event.Emit(m.bus, event.ZoneLoaded{
		ZoneID: a.ID,
		Name:   a.Name,
		Lights: cat.Len(),
		Source: src,
	})
	return a, nil
}

// Unload drops the active zone and releases every sink resource in one step.
func (m *Manager) Unload() {
	a := m.active
	if a == nil {
		return
	}
	m.active = nil
	m.sink.ReleaseAll()
	m.log.Info("zone unloaded", zap.Int32("zone", a.ID), zap.Duration("uptime", time.Since(a.LoadedAt)))
	event.Emit(m.bus, event.ZoneUnloaded{ZoneID: a.ID})
}

// Tick advances the active zone's scheduler. Returns false with no zone.
func (m *Manager) Tick(dt time.Duration, vp mgl64.Vec3) bool {
	if m.active == nil {
		return false
	}
	m.active.Scheduler.Tick(dt, vp)
	return true
}
