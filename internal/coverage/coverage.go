// Package coverage decides whether a customer address falls inside an employee's
// service area. Service areas are explicit counties plus zone labels that expand
// through a static zone table.
package coverage

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/jonathan/bin-crew/internal/schemas"
	"gopkg.in/yaml.v3"
)

// OutOfAreaZone is the zone for addresses outside every serviced county. It never
// matches automatically; such addresses require manual approval.
const OutOfAreaZone = "Out of Area"

//go:embed zones.yaml
var defaultZonesYAML []byte

//go:embed zones.schema.json
var zoneSchemaSource string

var zoneSchema = schemas.MustCompile("zones.schema.json", zoneSchemaSource)

// Zone is a named grouping of counties and cities.
type Zone struct {
	Label        string   `yaml:"label" json:"label"`
	Counties     []string `yaml:"counties" json:"counties"`
	Cities       []string `yaml:"cities" json:"cities"`
	Customizable bool     `yaml:"customizable" json:"customizable"`
}

type zoneFile struct {
	Zones []Zone `yaml:"zones"`
}

type zoneEntry struct {
	zone     Zone
	counties map[string]struct{}
	cities   map[string]struct{}
}

// Table is an immutable zone lookup table. It is safe for concurrent use.
type Table struct {
	entries map[string]*zoneEntry
	order   []string
}

var (
	defaultOnce  sync.Once
	defaultTable *Table
)

// DefaultTable returns the embedded zone table, parsed once per process.
func DefaultTable() *Table {
	defaultOnce.Do(func() {
		t, err := Parse(defaultZonesYAML)
		if err != nil {
			panic(fmt.Sprintf("embedded zone table is invalid: %v", err))
		}
		defaultTable = t
	})
	return defaultTable
}

// LoadFile parses a zone table from a YAML file on disk.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read zone file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse validates and builds a zone table from YAML.
func Parse(data []byte) (*Table, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse zone YAML: %w", err)
	}
	if err := zoneSchema.Validate(raw); err != nil {
		return nil, err
	}

	var file zoneFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to decode zones: %w", err)
	}

	t := &Table{entries: make(map[string]*zoneEntry, len(file.Zones))}
	for _, z := range file.Zones {
		key := normalize(z.Label)
		if _, dup := t.entries[key]; dup {
			return nil, fmt.Errorf("duplicate zone label %q", z.Label)
		}
		if key == normalize(OutOfAreaZone) && (len(z.Counties) > 0 || len(z.Cities) > 0 || z.Customizable) {
			return nil, fmt.Errorf("zone %q must have no counties, no cities and customizable=false", OutOfAreaZone)
		}
		t.entries[key] = &zoneEntry{
			zone:     z,
			counties: toSet(z.Counties),
			cities:   toSet(z.Cities),
		}
		t.order = append(t.order, key)
	}
	return t, nil
}

// IsInCoverage reports whether a customer in customerCounty/customerCity may be
// served by an employee holding employeeZones and employeeCounties.
func (t *Table) IsInCoverage(customerCounty, customerCity string, employeeZones, employeeCounties []string) bool {
	county := normalize(customerCounty)
	city := normalize(customerCity)

	if county != "" {
		for _, c := range employeeCounties {
			if normalize(c) == county {
				return true
			}
		}
	}

	for _, label := range employeeZones {
		key := normalize(label)
		if key == normalize(OutOfAreaZone) {
			continue
		}
		entry, ok := t.entries[key]
		if !ok {
			continue
		}
		if _, hit := entry.counties[county]; hit && county != "" {
			return true
		}
		if _, hit := entry.cities[city]; hit && city != "" {
			return true
		}
	}
	return false
}

// Zone returns a copy of the zone with the given label.
func (t *Table) Zone(label string) (Zone, bool) {
	entry, ok := t.entries[normalize(label)]
	if !ok {
		return Zone{}, false
	}
	return copyZone(entry.zone), true
}

// Zones returns copies of all zones in table order.
func (t *Table) Zones() []Zone {
	out := make([]Zone, 0, len(t.order))
	for _, key := range t.order {
		out = append(out, copyZone(t.entries[key].zone))
	}
	return out
}

// Labels returns zone labels in table order.
func (t *Table) Labels() []string {
	labels := make([]string, 0, len(t.order))
	for _, key := range t.order {
		labels = append(labels, t.entries[key].zone.Label)
	}
	return labels
}

// ZonesForAddress returns the labels of every zone that covers the address.
func (t *Table) ZonesForAddress(county, city string) []string {
	var labels []string
	for _, key := range t.order {
		entry := t.entries[key]
		if t.IsInCoverage(county, city, []string{entry.zone.Label}, nil) {
			labels = append(labels, entry.zone.Label)
		}
	}
	return labels
}

// IsInCoverage checks coverage against the embedded default table.
func IsInCoverage(customerCounty, customerCity string, employeeZones, employeeCounties []string) bool {
	return DefaultTable().IsInCoverage(customerCounty, customerCity, employeeZones, employeeCounties)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if n := normalize(v); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}

func copyZone(z Zone) Zone {
	z.Counties = append([]string(nil), z.Counties...)
	z.Cities = append([]string(nil), z.Cities...)
	return z
}
