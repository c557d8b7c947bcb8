package data

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/l1jgo/zonelights/internal/lighting"
)

//go:embed schema/zone_lights.schema.json
var zoneSchemaJSON string

var (
	zoneSchemaOnce sync.Once
	zoneSchema     *jsonschema.Schema
	zoneSchemaErr  error
)

func compiledZoneSchema() (*jsonschema.Schema, error) {
	zoneSchemaOnce.Do(func() {
		zoneSchema, zoneSchemaErr = jsonschema.CompileString("zone_lights.schema.json", zoneSchemaJSON)
	})
	return zoneSchema, zoneSchemaErr
}

// CameraPath is the fly-through used by the server when no client drives
// the viewpoint.
type CameraPath struct {
	Speed     float64      `yaml:"speed"` // world units per second
	Loop      bool         `yaml:"loop"`
	Waypoints [][3]float64 `yaml:"waypoints"`
}

// Points returns the waypoints as vectors.
func (c CameraPath) Points() []mgl64.Vec3 {
	out := make([]mgl64.Vec3, len(c.Waypoints))
	for i, w := range c.Waypoints {
		out[i] = mgl64.Vec3(w)
	}
	return out
}

// ZoneInfo is one zone entry of zone_lights.yaml.
type ZoneInfo struct {
	ZoneID int32                 `yaml:"zone_id"`
	Name   string                `yaml:"name"`
	Tuning lighting.Tuning       `yaml:"tuning"`
	Camera CameraPath            `yaml:"camera"`
	Lights []lighting.Descriptor `yaml:"lights"`
}

type zoneListFile struct {
	Zones []ZoneInfo `yaml:"zones"`
}

// ZoneTable holds zone light lists indexed by zone id.
type ZoneTable struct {
	zones map[int32]*ZoneInfo
}

// LoadZoneTable loads and schema-checks zone_lights.yaml.
func LoadZoneTable(path string) (*ZoneTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read zone list %s: %w", path, err)
	}
	return ParseZoneTable(raw)
}

// ParseZoneTable is LoadZoneTable on an in-memory document.
func ParseZoneTable(raw []byte) (*ZoneTable, error) {
	if err := validateZoneDoc(raw); err != nil {
		return nil, err
	}
	var file zoneListFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse zone list: %w", err)
	}
	t := &ZoneTable{zones: make(map[int32]*ZoneInfo, len(file.Zones))}
	for i := range file.Zones {
		z := &file.Zones[i]
		if _, dup := t.zones[z.ZoneID]; dup {
			return nil, fmt.Errorf("zone list: duplicate zone_id %d", z.ZoneID)
		}
		t.zones[z.ZoneID] = z
	}
	return t, nil
}

// validateZoneDoc checks the generic YAML tree against the embedded schema.
// The tree goes through encoding/json first so numbers reach the validator
// as json.Number.
func validateZoneDoc(raw []byte) error {
	schema, err := compiledZoneSchema()
	if err != nil {
		return fmt.Errorf("compile zone schema: %w", err)
	}
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse zone list: %w", err)
	}
	js, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("zone list: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(js))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("zone list: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("zone list schema: %w", err)
	}
	return nil
}

// Get returns the zone, or nil if unknown.
func (t *ZoneTable) Get(id int32) *ZoneInfo {
	return t.zones[id]
}

// IDs returns all zone ids in ascending order.
func (t *ZoneTable) IDs() []int32 {
	ids := make([]int32, 0, len(t.zones))
	for id := range t.zones {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Count returns the number of zones loaded.
func (t *ZoneTable) Count() int {
	return len(t.zones)
}

// LightCount returns the total number of lights over all zones.
func (t *ZoneTable) LightCount() int {
	n := 0
	for _, z := range t.zones {
		n += len(z.Lights)
	}
	return n
}
