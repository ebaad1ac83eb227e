package models

import (
	"fmt"
	"sort"
	"strconv"
)

// Sighting is one observation of a base station's broadcast parameters
type Sighting struct {
	ID int64 `json:"id" db:"id"`

	// Network identity (PLMN) and transmitter identity
	MCC      int   `json:"mcc" db:"mcc"`
	MNC      int   `json:"mnc" db:"mnc"`
	TAC      int   `json:"tac" db:"tac"`
	EnodebID int64 `json:"enodebId" db:"enodeb_id"`

	// Secondary parameters decoded from the broadcast
	SectorID  int   `json:"sectorId" db:"sector_id"`
	CID       int64 `json:"cid" db:"cid"`
	PhyCellID int   `json:"phyCellId" db:"phy_cell_id"`
	EARFCN    int   `json:"earfcn" db:"earfcn"`

	// Observer position
	Lat float64 `json:"lat" db:"lat"`
	Lon float64 `json:"lon" db:"lon"`

	// Signal descriptor
	TxPower float64 `json:"txPower" db:"tx_pwr"` // dBm as received by the observer
	RSSI    float64 `json:"rssi" db:"rssi"`
	RawSIB1 string  `json:"rawSib1,omitempty" db:"raw_sib1"` // hex encoded

	Timestamp int64 `json:"timestamp" db:"timestamp"` // Unix timestamp in seconds
}

// PLMN returns the network identity triple in mcc_mnc_tac form
func (s Sighting) PLMN() string {
	return fmt.Sprintf("%d_%d_%d", s.MCC, s.MNC, s.TAC)
}

// SightingField describes one externally visible column of a sighting
type SightingField struct {
	Name      string
	Sensitive bool
	value     func(s Sighting) string
}

// SightingFields is the explicit list of sighting columns, in display order.
// Sensitive columns are hidden from parameter dumps unless the caller asks for them.
var SightingFields = []SightingField{
	{Name: "id", Sensitive: true, value: func(s Sighting) string { return strconv.FormatInt(s.ID, 10) }},
	{Name: "mcc", Sensitive: true, value: func(s Sighting) string { return strconv.Itoa(s.MCC) }},
	{Name: "mnc", Sensitive: true, value: func(s Sighting) string { return strconv.Itoa(s.MNC) }},
	{Name: "tac", Sensitive: true, value: func(s Sighting) string { return strconv.Itoa(s.TAC) }},
	{Name: "enodeb_id", Sensitive: true, value: func(s Sighting) string { return strconv.FormatInt(s.EnodebID, 10) }},
	{Name: "sector_id", value: func(s Sighting) string { return strconv.Itoa(s.SectorID) }},
	{Name: "cid", value: func(s Sighting) string { return strconv.FormatInt(s.CID, 10) }},
	{Name: "phy_cell_id", value: func(s Sighting) string { return strconv.Itoa(s.PhyCellID) }},
	{Name: "earfcn", value: func(s Sighting) string { return strconv.Itoa(s.EARFCN) }},
	{Name: "lat", Sensitive: true, value: func(s Sighting) string { return strconv.FormatFloat(s.Lat, 'f', 6, 64) }},
	{Name: "lon", Sensitive: true, value: func(s Sighting) string { return strconv.FormatFloat(s.Lon, 'f', 6, 64) }},
	{Name: "tx_pwr", value: func(s Sighting) string { return strconv.FormatFloat(s.TxPower, 'f', 1, 64) }},
	{Name: "rssi", value: func(s Sighting) string { return strconv.FormatFloat(s.RSSI, 'f', 1, 64) }},
	{Name: "raw_sib1", Sensitive: true, value: func(s Sighting) string { return s.RawSIB1 }},
	{Name: "timestamp", value: func(s Sighting) string { return strconv.FormatInt(s.Timestamp, 10) }},
}

// FieldFilter selects which sighting columns a caller sees
type FieldFilter struct {
	ShowSensitive bool     // include sensitive columns
	Only          []string // if set, restrict output to these column names
}

// VisibleFields returns the column names allowed by the filter, in display order
func (f FieldFilter) VisibleFields() []string {
	var only map[string]bool
	if len(f.Only) > 0 {
		only = make(map[string]bool, len(f.Only))
		for _, name := range f.Only {
			only[name] = true
		}
	}

	var names []string
	for _, field := range SightingFields {
		if field.Sensitive && !f.ShowSensitive {
			continue
		}
		if only != nil && !only[field.Name] {
			continue
		}
		names = append(names, field.Name)
	}
	return names
}

// Params dumps the sighting as name/value pairs restricted by the filter
func (s Sighting) Params(f FieldFilter) map[string]string {
	visible := make(map[string]bool)
	for _, name := range f.VisibleFields() {
		visible[name] = true
	}

	params := make(map[string]string, len(visible))
	for _, field := range SightingFields {
		if visible[field.Name] {
			params[field.Name] = field.value(s)
		}
	}
	return params
}

// IsSightingField reports whether name is a known sighting column
func IsSightingField(name string) bool {
	for _, field := range SightingFields {
		if field.Name == name {
			return true
		}
	}
	return false
}

// SortSightings orders sightings by timestamp ascending, ties by ID
func SortSightings(sightings []Sighting) {
	sort.SliceStable(sightings, func(i, j int) bool {
		if sightings[i].Timestamp != sightings[j].Timestamp {
			return sightings[i].Timestamp < sightings[j].Timestamp
		}
		return sightings[i].ID < sightings[j].ID
	})
}
