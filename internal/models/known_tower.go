package models

import "time"

// KnownTower is a curated, trusted base station location
type KnownTower struct {
	ID       int64   `json:"id" db:"id"`
	MCC      int     `json:"mcc" db:"mcc"`
	MNC      int     `json:"mnc" db:"mnc"`
	TAC      int     `json:"tac" db:"tac"`
	EnodebID int64   `json:"enodebId" db:"enodeb_id"`
	Name     string  `json:"name,omitempty" db:"name"`
	Lat      float64 `json:"lat" db:"lat"`
	Lon      float64 `json:"lon" db:"lon"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// KnownTowerRequest is the payload of the "add known tower" administrative action
type KnownTowerRequest struct {
	MCC      int      `json:"mcc" yaml:"mcc"`
	MNC      int      `json:"mnc" yaml:"mnc"`
	TAC      int      `json:"tac" yaml:"tac"`
	EnodebID int64    `json:"enodebId" yaml:"enodeb_id"`
	Name     string   `json:"name" yaml:"name"`
	Lat      *float64 `json:"lat" yaml:"lat" binding:"required,latitude"`
	Lon      *float64 `json:"lon" yaml:"lon" binding:"required,longitude"`
}
