// lightconv converts legacy light_spawn SQL dumps into zone_lights.yaml.
//
// Usage:
//
//	go run ./cmd/lightconv -in light_spawn.sql [-out path] [-big5] [-sqlite path]
//
// Each row is (zone_id, x, y, z, r, g, b[, zone_name]). Lights keep dump
// order within a zone; zones are written in ascending id order.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/traditionalchinese"
	"gopkg.in/yaml.v3"

	"github.com/l1jgo/zonelights/internal/data"
	"github.com/l1jgo/zonelights/internal/lighting"
	"github.com/l1jgo/zonelights/internal/persist"
)

type zoneListYAML struct {
	Zones []zoneYAML `yaml:"zones"`
}

type zoneYAML struct {
	ZoneID int32                 `yaml:"zone_id"`
	Name   string                `yaml:"name,omitempty"`
	Lights []lighting.Descriptor `yaml:"lights"`
}

func main() {
	in := flag.String("in", "light_spawn.sql", "SQL dump with INSERT INTO light_spawn rows")
	out := flag.String("out", filepath.Join("data", "yaml", "zone_lights.yaml"), "YAML output path")
	big5 := flag.Bool("big5", false, "decode the dump as MS950 (Big5)")
	sqlitePath := flag.String("sqlite", "", "also write the zones into this SQLite database")
	flag.Parse()

	raw, err := os.ReadFile(*in)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *big5 {
		raw, err = traditionalchinese.Big5.NewDecoder().Bytes(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "decode big5: %v\n", err)
			os.Exit(1)
		}
	}

	zones, skipped, err := convert(bytes.NewReader(raw))
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}

	doc, err := yaml.Marshal(zoneListYAML{Zones: zones})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
	// the server must accept what we write
	if _, err := data.ParseZoneTable(doc); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: generated file rejected: %v\n", err)
		os.Exit(1)
	}
	if err := writeYAML(*out, doc, fmt.Sprintf("auto-generated from %s", filepath.Base(*in))); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}

	total := 0
	for _, z := range zones {
		total += len(z.Lights)
	}
	fmt.Printf("Wrote %d zones / %d lights to %s (%d rows skipped)\n", len(zones), total, *out, skipped)

	if *sqlitePath != "" {
		if err := writeSQLite(*sqlitePath, zones); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR [sqlite]: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %d zones to %s\n", len(zones), *sqlitePath)
	}
}

// convert groups light_spawn rows by zone. Rows that are not INSERTs into
// light_spawn, or have too few or malformed columns, are counted as skipped.
func convert(r io.Reader) ([]zoneYAML, int, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, err
	}

	byZone := make(map[int32]*zoneYAML)
	skipped := 0
	for _, line := range strings.Split(string(src), "\n") {
		line = strings.TrimSpace(line)
		upper := strings.ToUpper(line)
		if !strings.HasPrefix(upper, "INSERT INTO") || !strings.Contains(upper, "LIGHT_SPAWN") {
			continue
		}
		for _, vals := range parseValues(line) {
			zoneID, d, name, ok := parseRow(vals)
			if !ok {
				skipped++
				continue
			}
			z := byZone[zoneID]
			if z == nil {
				z = &zoneYAML{ZoneID: zoneID, Lights: []lighting.Descriptor{}}
				byZone[zoneID] = z
			}
			if z.Name == "" {
				z.Name = name
			}
			z.Lights = append(z.Lights, d)
		}
	}

	zones := make([]zoneYAML, 0, len(byZone))
	for _, z := range byZone {
		zones = append(zones, *z)
	}
	sort.Slice(zones, func(i, j int) bool { return zones[i].ZoneID < zones[j].ZoneID })
	return zones, skipped, nil
}

func parseRow(vals []string) (int32, lighting.Descriptor, string, bool) {
	if len(vals) < 7 {
		return 0, lighting.Descriptor{}, "", false
	}
	zoneID, err := strconv.ParseInt(vals[0], 10, 32)
	if err != nil {
		return 0, lighting.Descriptor{}, "", false
	}
	var f [6]float64
	for i := range f {
		v, err := strconv.ParseFloat(vals[i+1], 64)
		if err != nil {
			return 0, lighting.Descriptor{}, "", false
		}
		f[i] = v
	}
	// the zone file rejects negative color channels
	if f[3] < 0 || f[4] < 0 || f[5] < 0 {
		return 0, lighting.Descriptor{}, "", false
	}
	name := ""
	if len(vals) > 7 {
		name = vals[7]
	}
	return int32(zoneID), lighting.Descriptor{X: f[0], Y: f[1], Z: f[2], R: f[3], G: f[4], B: f[5]}, name, true
}

// parseValues splits every parenthesized tuple after VALUES into fields.
// Single quotes delimit strings; '' is an escaped quote; NULL becomes "".
func parseValues(line string) [][]string {
	upper := strings.ToUpper(line)
	idx := strings.Index(upper, "VALUES")
	if idx == -1 {
		return nil
	}
	rest := line[idx+6:]

	var rows [][]string
	var values []string
	var cur strings.Builder
	inQuote, inTuple := false, false
	for i := 0; i < len(rest); i++ {
		ch := rest[i]
		if inQuote {
			if ch == '\'' {
				if i+1 < len(rest) && rest[i+1] == '\'' {
					cur.WriteByte('\'')
					i++
				} else {
					inQuote = false
				}
			} else {
				cur.WriteByte(ch)
			}
			continue
		}
		switch {
		case ch == '(' && !inTuple:
			inTuple = true
			values = nil
			cur.Reset()
		case !inTuple:
			// separators between tuples
		case ch == '\'':
			inQuote = true
		case ch == ',':
			values = append(values, strings.TrimSpace(cur.String()))
			cur.Reset()
		case ch == ')':
			values = append(values, strings.TrimSpace(cur.String()))
			cur.Reset()
			for j, v := range values {
				if strings.EqualFold(v, "null") {
					values[j] = ""
				}
			}
			rows = append(rows, values)
			inTuple = false
		default:
			cur.WriteByte(ch)
		}
	}
	return rows
}

func writeYAML(path string, doc []byte, comment string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# Zone lights - %s\n", comment)
	buf.Write(doc)
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func writeSQLite(path string, zones []zoneYAML) error {
	ctx := context.Background()
	db, err := persist.OpenSQLite(ctx, path, zap.NewNop())
	if err != nil {
		return err
	}
	defer db.Close()
	repo := persist.NewSQLiteZoneRepo(db)
	for _, z := range zones {
		if err := repo.ReplaceZone(ctx, z.ZoneID, z.Name, z.Lights); err != nil {
			return err
		}
	}
	return nil
}
