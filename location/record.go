// Package location holds the location records behind the card list, the
// search predicate over them, and the sources they are loaded from.
package location

import (
	"encoding/json"
	"fmt"
	"io"
)

// Record is one point of interest as it appears in the data file. The JSON
// keys match the existing map.json files and must not change.
type Record struct {
	Title       string  `json:"title"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Description string  `json:"descript,omitempty"`
	Image       string  `json:"image,omitempty"`
	Status      string  `json:"status,omitempty"`
	Link        string  `json:"link,omitempty"`
	Brief       string  `json:"brief,omitempty"`
	Photo       string  `json:"photo,omitempty"`
	Details     string  `json:"details,omitempty"`
}

// Decode reads a JSON array of records
func Decode(r io.Reader) ([]Record, error) {
	var records []Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode locations: %w", err)
	}
	return records, nil
}
