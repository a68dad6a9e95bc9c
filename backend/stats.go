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

// ZoneStats holds the per-zone event counts for one of the 18 zones.
type ZoneStats struct {
	ZoneID        string `json:"zoneId"`
	ZoneName      string `json:"zoneName"`
	Shots         int    `json:"shots"`
	Goals         int    `json:"goals"`
	Conceded      int    `json:"conceded"`
	ConcededGoals int    `json:"concededGoals"`
	BallLosses    int    `json:"ballLosses"`
	Recoveries    int    `json:"recoveries"`
}

// MatchStats is the derived aggregation of a match's event log: match-wide
// totals plus exactly one ZoneStats entry per defined zone, in zone order,
// including zones with all-zero counts. It is recomputed on demand and never
// stored.
type MatchStats struct {
	TotalShots         int         `json:"totalShots"`
	TotalGoals         int         `json:"totalGoals"`
	TotalConceded      int         `json:"totalConceded"`
	TotalConcededGoals int         `json:"totalConcededGoals"`
	TotalBallLosses    int         `json:"totalBallLosses"`
	TotalRecoveries    int         `json:"totalRecoveries"`
	ZoneStats          []ZoneStats `json:"zoneStats"`
}

// CalculateStats folds the match's ordered event list into per-zone and total
// statistics. Pure function: the input is not mutated and repeated calls with
// the same input yield the same result. Events carrying a zone identifier
// outside the defined set (possible after an import) contribute to nothing —
// neither zone buckets nor totals.
func CalculateStats(m *Match) MatchStats {
	byZone := make(map[string]*ZoneStats, len(zones))
	stats := MatchStats{ZoneStats: make([]ZoneStats, len(zones))}
	for i, z := range zones {
		stats.ZoneStats[i] = ZoneStats{ZoneID: z.ID, ZoneName: z.Name}
		byZone[z.ID] = &stats.ZoneStats[i]
	}

	if m == nil {
		return stats
	}

	for _, e := range m.Events {
		zs, ok := byZone[e.Zone]
		if !ok {
			continue
		}
		switch e.Type {
		case EventTypeShot:
			zs.Shots++
			stats.TotalShots++
			if e.Outcome == OutcomeGoal {
				zs.Goals++
				stats.TotalGoals++
			}
		case EventTypeConceded:
			zs.Conceded++
			stats.TotalConceded++
			if e.Outcome == OutcomeGoal {
				zs.ConcededGoals++
				stats.TotalConcededGoals++
			}
		case EventTypeBallLoss:
			zs.BallLosses++
			stats.TotalBallLosses++
		case EventTypeRecovery:
			zs.Recoveries++
			stats.TotalRecoveries++
		}
	}

	return stats
}

// ConversionRate returns goals/shots as a percentage, or 0 when shots is 0.
// Any zone-level percentage is computed the same way.
func ConversionRate(goals, shots int) float64 {
	if shots == 0 {
		return 0
	}
	return float64(goals) / float64(shots) * 100
}
