// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backend

import "strconv"

// Zone is one of 18 fixed rectangles tiling the normalized 100x100 pitch
// surface, laid out as 6 columns by 3 rows. All coordinates are percentage
// units relative to the playing surface.
type Zone struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// zones is the static zone table. The column widths alternate 16.67/16.66 and
// the middle row is 33.34 high so that each row sums to exactly 100; a uniform
// split would not. The rectangles must stay consistent with ZoneForPosition.
var zones = []Zone{
	{ID: "1", Name: "Zone 1", X: 0, Y: 0, Width: 16.67, Height: 33.33},
	{ID: "2", Name: "Zone 2", X: 16.67, Y: 0, Width: 16.66, Height: 33.33},
	{ID: "3", Name: "Zone 3", X: 33.33, Y: 0, Width: 16.67, Height: 33.33},
	{ID: "4", Name: "Zone 4", X: 50, Y: 0, Width: 16.67, Height: 33.33},
	{ID: "5", Name: "Zone 5", X: 66.67, Y: 0, Width: 16.66, Height: 33.33},
	{ID: "6", Name: "Zone 6", X: 83.33, Y: 0, Width: 16.67, Height: 33.33},
	{ID: "7", Name: "Zone 7", X: 0, Y: 33.33, Width: 16.67, Height: 33.34},
	{ID: "8", Name: "Zone 8", X: 16.67, Y: 33.33, Width: 16.66, Height: 33.34},
	{ID: "9", Name: "Zone 9", X: 33.33, Y: 33.33, Width: 16.67, Height: 33.34},
	{ID: "10", Name: "Zone 10", X: 50, Y: 33.33, Width: 16.67, Height: 33.34},
	{ID: "11", Name: "Zone 11", X: 66.67, Y: 33.33, Width: 16.66, Height: 33.34},
	{ID: "12", Name: "Zone 12", X: 83.33, Y: 33.33, Width: 16.67, Height: 33.34},
	{ID: "13", Name: "Zone 13", X: 0, Y: 66.67, Width: 16.67, Height: 33.33},
	{ID: "14", Name: "Zone 14", X: 16.67, Y: 66.67, Width: 16.66, Height: 33.33},
	{ID: "15", Name: "Zone 15", X: 33.33, Y: 66.67, Width: 16.67, Height: 33.33},
	{ID: "16", Name: "Zone 16", X: 50, Y: 66.67, Width: 16.67, Height: 33.33},
	{ID: "17", Name: "Zone 17", X: 66.67, Y: 66.67, Width: 16.66, Height: 33.33},
	{ID: "18", Name: "Zone 18", X: 83.33, Y: 66.67, Width: 16.67, Height: 33.33},
}

// Zones returns the static ordered list of the 18 pitch zones.
func Zones() []Zone {
	out := make([]Zone, len(zones))
	copy(out, zones)
	return out
}

// ZoneByID looks up a zone by its identifier.
func ZoneByID(id string) (Zone, bool) {
	for _, z := range zones {
		if z.ID == id {
			return z, true
		}
	}
	return Zone{}, false
}

// ZoneForPosition maps a pitch position in percentage units to its zone
// identifier ("1".."18"). Intervals are half-open [lower, upper) with the
// last column/row absorbing everything up to and including 100. Inputs are
// not range-checked; callers clamp clicks to the visible playing surface.
func ZoneForPosition(x, y float64) string {
	var col int
	switch {
	case x < 16.67:
		col = 0
	case x < 33.33:
		col = 1
	case x < 50:
		col = 2
	case x < 66.67:
		col = 3
	case x < 83.33:
		col = 4
	default:
		col = 5
	}

	var row int
	switch {
	case y < 33.33:
		row = 0
	case y < 66.67:
		row = 1
	default:
		row = 2
	}

	return strconv.Itoa(row*6 + col + 1)
}
