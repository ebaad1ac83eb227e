// Package ingest reads seed files for the sighting store and the known-tower registry.
//
// Known towers come from YAML:
//
//	towers:
//	  - name: Main St
//	    mcc: 310
//	    mnc: 410
//	    tac: 1
//	    enodeb_id: 100
//	    lat: 40.0
//	    lon: -105.0
//
// Sightings come as newline-delimited JSON, one models.Sighting per line.
package ingest

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/jengzang/watchdog-backend-go/internal/models"
)

// maxLineBytes bounds a single NDJSON record; raw SIB1 dumps can be long
const maxLineBytes = 1 << 20

// TowerFile is the layout of a known-tower seed file
type TowerFile struct {
	Towers []models.KnownTowerRequest `yaml:"towers"`
}

// LoadTowers decodes a known-tower seed file. Every tower must carry a position.
func LoadTowers(r io.Reader) ([]models.KnownTowerRequest, error) {
	var file TowerFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to decode tower file: %w", err)
	}

	for i, t := range file.Towers {
		if t.Lat == nil || t.Lon == nil {
			return nil, fmt.Errorf("tower %d (%q): lat and lon are required", i, t.Name)
		}
	}
	return file.Towers, nil
}

// ReadSightings calls fn for every sighting in an NDJSON stream. Blank lines are skipped.
// It returns the number of sightings passed to fn.
func ReadSightings(r io.Reader, fn func(models.Sighting) error) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	count := 0
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		var s models.Sighting
		if err := json.Unmarshal(raw, &s); err != nil {
			return count, fmt.Errorf("line %d: failed to decode sighting: %w", line, err)
		}
		s.ID = 0

		if err := fn(s); err != nil {
			return count, fmt.Errorf("line %d: %w", line, err)
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		return count, fmt.Errorf("failed to read sightings: %w", err)
	}
	return count, nil
}
