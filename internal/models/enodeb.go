package models

// ClosestTower is the nearest known tower to an estimated position
type ClosestTower struct {
	Tower     KnownTower `json:"tower"`
	DistanceM float64    `json:"distanceM"`
	Distance  string     `json:"distance"` // human readable
}

// ScoreBreakdown lists the contribution of each suspiciousness term
type ScoreBreakdown struct {
	Distance        float64 `json:"distance"`
	Parameters      float64 `json:"parameters"`
	UnknownIdentity float64 `json:"unknownIdentity"`
	PowerAnomaly    float64 `json:"powerAnomaly"`
}

// EnodebSummary is the per-transmitter row of the global listing
type EnodebSummary struct {
	Key        string  `json:"key"`
	PLMN       string  `json:"plmn"`
	EnodebID   int64   `json:"enodebId"`
	Part       int     `json:"part"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	Confidence float64 `json:"confidence"`
	Degenerate bool    `json:"degenerate"`

	ClosestTower *ClosestTower `json:"closestTower"` // nil when the registry is empty

	UniqueCells    int     `json:"uniqueCells"`
	Sightings      int     `json:"sightings"`
	SplitCount     int     `json:"splitCount"` // >1 when the identity was split by position
	Suspiciousness float64 `json:"suspiciousness"`

	FirstSeen    int64  `json:"firstSeen"`
	LastSeen     int64  `json:"lastSeen"`
	LastSeenText string `json:"lastSeenText"`
}

// IdentityStats are store-side aggregates over every sighting of an identity
type IdentityStats struct {
	MinPower  float64 `json:"minPower"`
	MaxPower  float64 `json:"maxPower"`
	FirstSeen int64   `json:"firstSeen"`
	LastSeen  int64   `json:"lastSeen"`
}

// EnodebDetail is the per-transmitter detail view
type EnodebDetail struct {
	EnodebSummary
	Breakdown     ScoreBreakdown      `json:"breakdown"`
	IdentityStats IdentityStats       `json:"identityStats"`
	Centroid      Position            `json:"centroid"`
	Similar       []EnodebSummary     `json:"similar"`
	ShowColumns   []string            `json:"showColumns"`
	Params        []map[string]string `json:"params"`
}

// Position is a plain lat/lon pair
type Position struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// MapPoint is one transmitter on the map export
type MapPoint struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Key      string  `json:"key"`
	EnodebID int64   `json:"enodebId"`
}

// MapView is the map export: estimated transmitters drawn over the known-tower registry
type MapView struct {
	Points      []MapPoint   `json:"points"`
	KnownTowers []KnownTower `json:"knownTowers"`
}

// SightingDetail is one sighting together with its look-alike sightings
type SightingDetail struct {
	Sighting   Sighting   `json:"sighting"`
	Similar    []Sighting `json:"similar"`
	NumTowers  int        `json:"numTowers"`
	Estimate   Position   `json:"estimate"`
	Confidence float64    `json:"confidence"`
	Centroid   Position   `json:"centroid"`
}
