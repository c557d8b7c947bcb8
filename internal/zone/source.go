package zone

import (
	"context"
	"errors"
	"fmt"

	"github.com/l1jgo/zonelights/internal/data"
	"github.com/l1jgo/zonelights/internal/lighting"
	"github.com/l1jgo/zonelights/internal/persist"
	"github.com/l1jgo/zonelights/internal/scripting"
)

// Info is everything a source knows about one zone.
type Info struct {
	ZoneID int32
	Name   string
	Lights []lighting.Descriptor
	Tuning lighting.Tuning
	Camera data.CameraPath
}

// Source resolves zone light lists. Lookup returns ok == false when the
// source has no data for the zone; err is reserved for real failures.
type Source interface {
	Name() string
	Lookup(ctx context.Context, zoneID int32) (info *Info, ok bool, err error)
}

// TableSource serves zones from the YAML zone table.
type TableSource struct {
	Table *data.ZoneTable
}

func (TableSource) Name() string { return "yaml" }

func (s TableSource) Lookup(_ context.Context, zoneID int32) (*Info, bool, error) {
	z := s.Table.Get(zoneID)
	if z == nil {
		return nil, false, nil
	}
	return &Info{
		ZoneID: z.ZoneID,
		Name:   z.Name,
		Lights: z.Lights,
		Tuning: z.Tuning,
		Camera: z.Camera,
	}, true, nil
}

// RepoSource serves zones from a persist.ZoneRepo. The repository stores
// light lists only; name and camera come from Fallback when set.
type RepoSource struct {
	Repo     persist.ZoneRepo
	Fallback *data.ZoneTable
}

func (RepoSource) Name() string { return "database" }

func (s RepoSource) Lookup(ctx context.Context, zoneID int32) (*Info, bool, error) {
	lights, err := s.Repo.LoadLights(ctx, zoneID)
	if errors.Is(err, persist.ErrZoneNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load zone %d lights: %w", zoneID, err)
	}
	info := &Info{ZoneID: zoneID, Name: fmt.Sprintf("zone %d", zoneID), Lights: lights}
	if s.Fallback != nil {
		if z := s.Fallback.Get(zoneID); z != nil {
			info.Name = z.Name
			info.Tuning = z.Tuning
			info.Camera = z.Camera
		}
	}
	return info, true, nil
}

// ScriptSource serves zones generated by Lua scripts.
type ScriptSource struct {
	Engine *scripting.Engine
}

func (ScriptSource) Name() string { return "script" }

func (s ScriptSource) Lookup(_ context.Context, zoneID int32) (*Info, bool, error) {
	lights, ok, err := s.Engine.ZoneLights(zoneID)
	if err != nil || !ok {
		return nil, false, err
	}
	info := &Info{ZoneID: zoneID, Name: fmt.Sprintf("script zone %d", zoneID), Lights: lights}
	if t, ok := s.Engine.ZoneTuning(zoneID); ok {
		info.Tuning = t
	}
	return info, true, nil
}
