package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Coordinate is a WGS84 position in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// IsZero reports whether the coordinate is (0,0), which is what stores without
// coordinates decode to.
func (c Coordinate) IsZero() bool {
	return c.Lat == 0 && c.Lng == 0
}

// StoreID identifies a retail location. The store directory may return ids as
// JSON numbers or strings; both decode to the same StoreID so that equality is
// always a string comparison.
type StoreID string

// UnmarshalJSON accepts a JSON string, a JSON number, or null.
func (id *StoreID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return eris.Wrap(err, "model: decode store id")
		}
		*id = StoreID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return eris.Wrap(err, "model: decode store id")
	}
	*id = StoreID(n.String())
	return nil
}

// String returns the id as a plain string.
func (id StoreID) String() string {
	return string(id)
}

// Int converts the id to an integer for the CRM and CMS wire formats.
func (id StoreID) Int() (int, bool) {
	n, err := strconv.Atoi(string(id))
	if err != nil {
		return 0, false
	}
	return n, true
}

// StoreRecord is one retail location as published by the store directory.
type StoreRecord struct {
	ID         StoreID    `json:"id" yaml:"id"`
	Name       string     `json:"name" yaml:"name"`
	City       string     `json:"city" yaml:"city"`
	State      string     `json:"state" yaml:"state"`
	Address    string     `json:"address" yaml:"address"`
	Phone      string     `json:"phone" yaml:"phone"`
	Email      string     `json:"email,omitempty" yaml:"email"`
	Hours      string     `json:"hours,omitempty" yaml:"hours"`
	Images     []string   `json:"images,omitempty" yaml:"images"`
	Coordinate Coordinate `json:"coordinate" yaml:"coordinate"`
}

// RankedStore is a store annotated with its distance from an origin.
type RankedStore struct {
	StoreRecord
	DistanceKm float64 `json:"distanceKm"`
}
