package main

import (
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/l1jgo/zonelights/internal/data"
)

const dump = `
-- light spawns
INSERT INTO ` + "`light_spawn`" + ` VALUES ('4', '10.5', '0', '-3', '255', '200', '120', 'Giran');
INSERT INTO ` + "`light_spawn`" + ` VALUES ('4', '20', '1', '2', '1', '1', '1', NULL), ('2', '0', '0', '0', '255', '255', '255', 'Talking ''Island''');
INSERT INTO ` + "`light_spawn`" + ` VALUES ('4', 'bad', '1', '2', '1', '1', '1');
INSERT INTO ` + "`light_spawn`" + ` VALUES ('4', '1', '1', '2', '-1', '1', '1');
INSERT INTO ` + "`light_spawn`" + ` VALUES ('4', '1');
INSERT INTO ` + "`npc`" + ` VALUES ('4', '1', '1', '1', '1', '1', '1');
`

func TestConvert(t *testing.T) {
	zones, skipped, err := convert(strings.NewReader(dump))
	if err != nil {
		t.Fatal(err)
	}
	if skipped != 3 {
		t.Fatalf("skipped = %d, want 3", skipped)
	}
	if len(zones) != 2 || zones[0].ZoneID != 2 || zones[1].ZoneID != 4 {
		t.Fatalf("zones = %+v", zones)
	}
	if zones[0].Name != "Talking 'Island'" {
		t.Fatalf("name = %q", zones[0].Name)
	}
	z4 := zones[1]
	if z4.Name != "Giran" || len(z4.Lights) != 2 {
		t.Fatalf("zone 4 = %+v", z4)
	}
	if z4.Lights[0].X != 10.5 || z4.Lights[0].Z != -3 || z4.Lights[1].X != 20 {
		t.Fatalf("dump order lost: %+v", z4.Lights)
	}

	doc, err := yaml.Marshal(zoneListYAML{Zones: zones})
	if err != nil {
		t.Fatal(err)
	}
	tbl, err := data.ParseZoneTable(doc)
	if err != nil {
		t.Fatalf("generated yaml rejected: %v\n%s", err, doc)
	}
	if tbl.LightCount() != 3 {
		t.Fatalf("light count = %d", tbl.LightCount())
	}
}

func TestParseValues_MultiRow(t *testing.T) {
	rows := parseValues(`INSERT INTO t VALUES (1, 'a,b'), (2, NULL)`)
	if len(rows) != 2 || rows[0][1] != "a,b" || rows[1][0] != "2" || rows[1][1] != "" {
		t.Fatalf("rows = %q", rows)
	}
	if parseValues("SELECT 1") != nil {
		t.Fatal("non-insert parsed")
	}
}
