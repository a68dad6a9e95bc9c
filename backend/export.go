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

import (
	"bytes"
	"encoding/csv"
	"strconv"
)

// StatsToCSV renders match statistics as a CSV report: one row per zone in
// zone order, then a blank row, then a summary block of the totals.
func StatsToCSV(stats MatchStats) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	records := [][]string{
		{"Zone", "Shots", "Goals", "Shots Conceded", "Goals Conceded", "Ball Losses", "Recoveries"},
	}
	for _, zs := range stats.ZoneStats {
		records = append(records, []string{
			"Zone " + zs.ZoneID,
			strconv.Itoa(zs.Shots),
			strconv.Itoa(zs.Goals),
			strconv.Itoa(zs.Conceded),
			strconv.Itoa(zs.ConcededGoals),
			strconv.Itoa(zs.BallLosses),
			strconv.Itoa(zs.Recoveries),
		})
	}
	records = append(records,
		[]string{},
		[]string{"Summary"},
		[]string{"Total Shots", strconv.Itoa(stats.TotalShots)},
		[]string{"Total Goals", strconv.Itoa(stats.TotalGoals)},
		[]string{"Total Conceded", strconv.Itoa(stats.TotalConceded)},
		[]string{"Total Conceded Goals", strconv.Itoa(stats.TotalConcededGoals)},
		[]string{"Ball Losses", strconv.Itoa(stats.TotalBallLosses)},
		[]string{"Recoveries", strconv.Itoa(stats.TotalRecoveries)},
	)

	if err := w.WriteAll(records); err != nil {
		return nil, err
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
