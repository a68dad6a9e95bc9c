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

// Position is a click location on the pitch in percentage units [0, 100],
// relative to the playing surface rectangle.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Team identifies one side of a match.
type Team struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Permissions defines access control for a match.
type Permissions struct {
	Public string            `json:"public,omitempty"` // "none", "read"
	Users  map[string]string `json:"users,omitempty"`  // "email": "read"|"write"
}

// MatchEvent is one logged occurrence on the pitch. Type is one of the four
// event type tags; Outcome is set for shot/conceded events and empty for
// ball_loss/recovery. Minute is a sequence-order proxy (event count at append
// time), not wall-clock. Timestamp is ms since epoch, record-keeping only.
type MatchEvent struct {
	ID        string   `json:"id"`
	Type      string   `json:"type"`
	Position  Position `json:"position"`
	Zone      string   `json:"zone"`
	Outcome   string   `json:"outcome,omitempty"`
	Minute    int      `json:"minute"`
	Half      int      `json:"half,omitempty"`
	Timestamp int64    `json:"timestamp"`
}

// Match is the aggregate root: two teams, a date, optional scores and the
// ordered event log. Insertion order is chronological order.
type Match struct {
	ID            string       `json:"id"`
	SchemaVersion int          `json:"schemaVersion"`
	Date          string       `json:"date"` // YYYY-MM-DD
	HomeTeam      Team         `json:"homeTeam"`
	AwayTeam      Team         `json:"awayTeam"`
	HomeScore     *int         `json:"homeScore,omitempty"`
	AwayScore     *int         `json:"awayScore,omitempty"`
	Events        []MatchEvent `json:"events"`
	OwnerID       string       `json:"ownerId,omitempty"`
	Permissions   Permissions  `json:"permissions,omitempty"`
}

func (m *Match) normalize() {
	if m.SchemaVersion == 0 {
		m.SchemaVersion = CurrentSchemaVersion
	}
	if m.Events == nil {
		m.Events = make([]MatchEvent, 0)
	}
	if m.Permissions.Users == nil {
		m.Permissions.Users = make(map[string]string)
	}
}

// Clone returns a deep copy of the match.
func (m *Match) Clone() *Match {
	c := *m
	c.Events = make([]MatchEvent, len(m.Events))
	copy(c.Events, m.Events)
	if m.HomeScore != nil {
		hs := *m.HomeScore
		c.HomeScore = &hs
	}
	if m.AwayScore != nil {
		as := *m.AwayScore
		c.AwayScore = &as
	}
	c.Permissions.Users = make(map[string]string, len(m.Permissions.Users))
	for k, v := range m.Permissions.Users {
		c.Permissions.Users[k] = v
	}
	return &c
}

// findEvent returns the index of the first event with the given id, or -1.
func (m *Match) findEvent(id string) int {
	for i := range m.Events {
		if m.Events[i].ID == id {
			return i
		}
	}
	return -1
}

// MatchSummary is the listing view of a match: metadata without the event log.
type MatchSummary struct {
	ID         string `json:"id"`
	Date       string `json:"date"`
	HomeTeam   string `json:"homeTeam"`
	AwayTeam   string `json:"awayTeam"`
	EventCount int    `json:"eventCount"`
	Revision   string `json:"revision"` // id of the last event, if any
	OwnerID    string `json:"ownerId,omitempty"`
}

// Summary builds the listing view for the match.
func (m *Match) Summary() MatchSummary {
	s := MatchSummary{
		ID:         m.ID,
		Date:       m.Date,
		HomeTeam:   m.HomeTeam.Name,
		AwayTeam:   m.AwayTeam.Name,
		EventCount: len(m.Events),
		OwnerID:    m.OwnerID,
	}
	if n := len(m.Events); n > 0 {
		s.Revision = m.Events[n-1].ID
	}
	return s
}
