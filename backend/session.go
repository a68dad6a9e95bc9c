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
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session errors.
var (
	ErrNoMatch       = errors.New("no active match")
	ErrEventNotFound = errors.New("event not found")
	ErrMatchNotFound = errors.New("match not found")
)

// EventPatch is a partial update for a logged event. Only minute and half
// can be edited after the fact; position, zone, type and outcome are fixed
// at logging time.
type EventPatch struct {
	Minute *int `json:"minute,omitempty"`
	Half   *int `json:"half,omitempty"`
}

// Session holds the match currently being logged. All mutations funnel
// through here under one lock, are applied to the in-memory match and then
// written through to the store before returning.
type Session struct {
	mu      sync.Mutex
	store   *MatchStore
	current *Match

	// overridable in tests
	now   func() time.Time
	newID func() string
}

// NewSession creates a session with no active match.
func NewSession(store *MatchStore) *Session {
	return &Session{
		store: store,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Current returns a copy of the active match, or nil if none.
func (s *Session) Current() *Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	return s.current.Clone()
}

// Create starts a new match with fresh IDs and an empty event log, makes it
// the active match and persists it.
func (s *Session) Create(homeName, awayName, ownerID string) (*Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := &Match{
		ID:            s.newID(),
		SchemaVersion: CurrentSchemaVersion,
		Date:          s.now().Format("2006-01-02"),
		HomeTeam:      Team{ID: s.newID(), Name: homeName},
		AwayTeam:      Team{ID: s.newID(), Name: awayName},
		OwnerID:       ownerID,
	}
	m.normalize()
	s.current = m
	if err := s.store.UpsertMatch(m); err != nil {
		return nil, err
	}
	return m.Clone(), nil
}

// AddEvent appends a new event to the active match. The zone is derived from
// the position, the minute from the current event count. Shot and conceded
// events must carry an outcome; other types must not.
func (s *Session) AddEvent(eventType string, x, y float64, outcome string) (*MatchEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return nil, ErrNoMatch
	}
	if !isKnownEventType(eventType) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidEventType, eventType)
	}
	if requiresOutcome(eventType) {
		if !isKnownOutcome(outcome) {
			return nil, fmt.Errorf("invalid outcome for %s event: %q", eventType, outcome)
		}
	} else if outcome != "" {
		return nil, fmt.Errorf("unexpected outcome for %s event", eventType)
	}

	evt := MatchEvent{
		ID:        s.newID(),
		Type:      eventType,
		Position:  Position{X: x, Y: y},
		Zone:      ZoneForPosition(x, y),
		Outcome:   outcome,
		Minute:    len(s.current.Events) + 1,
		Timestamp: s.now().UnixMilli(),
	}
	s.current.Events = append(s.current.Events, evt)
	if err := s.store.UpsertMatch(s.current); err != nil {
		return nil, err
	}
	return &evt, nil
}

// UndoLast removes the most recent event. Undo on an empty log is a no-op.
func (s *Session) UndoLast() (*Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return nil, ErrNoMatch
	}
	if n := len(s.current.Events); n > 0 {
		s.current.Events = s.current.Events[:n-1]
		if err := s.store.UpsertMatch(s.current); err != nil {
			return nil, err
		}
	}
	return s.current.Clone(), nil
}

// Clear empties the active match's event log while keeping its identity and
// metadata.
func (s *Session) Clear() (*Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return nil, ErrNoMatch
	}
	s.current.Events = make([]MatchEvent, 0)
	if err := s.store.UpsertMatch(s.current); err != nil {
		return nil, err
	}
	return s.current.Clone(), nil
}

// RemoveEvent deletes the event with the given id from the active match.
// Later events keep their recorded minutes; the log is not renumbered.
func (s *Session) RemoveEvent(id string) (*Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return nil, ErrNoMatch
	}
	i := s.current.findEvent(id)
	if i < 0 {
		return nil, ErrEventNotFound
	}
	s.current.Events = append(s.current.Events[:i], s.current.Events[i+1:]...)
	if err := s.store.UpsertMatch(s.current); err != nil {
		return nil, err
	}
	return s.current.Clone(), nil
}

// UpdateEvent applies a partial edit to the event with the given id.
func (s *Session) UpdateEvent(id string, patch EventPatch) (*MatchEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return nil, ErrNoMatch
	}
	i := s.current.findEvent(id)
	if i < 0 {
		return nil, ErrEventNotFound
	}
	evt := &s.current.Events[i]
	if patch.Minute != nil {
		if *patch.Minute < 1 {
			return nil, fmt.Errorf("invalid minute: %d", *patch.Minute)
		}
		evt.Minute = *patch.Minute
	}
	if patch.Half != nil {
		if *patch.Half != FirstHalf && *patch.Half != SecondHalf {
			return nil, fmt.Errorf("invalid half: %d", *patch.Half)
		}
		evt.Half = *patch.Half
	}
	if err := s.store.UpsertMatch(s.current); err != nil {
		return nil, err
	}
	out := *evt
	return &out, nil
}

// UpdateTeams renames one or both teams of the active match. An empty name
// leaves the corresponding team unchanged; team IDs never change.
func (s *Session) UpdateTeams(homeName, awayName string) (*Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return nil, ErrNoMatch
	}
	if homeName != "" {
		s.current.HomeTeam.Name = homeName
	}
	if awayName != "" {
		s.current.AwayTeam.Name = awayName
	}
	if err := s.store.UpsertMatch(s.current); err != nil {
		return nil, err
	}
	return s.current.Clone(), nil
}

// Load makes a stored match the active match.
func (s *Session) Load(id string) (*Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.store.GetMatch(id)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	s.current = m
	return m.Clone(), nil
}

// Import validates an external match document, persists it and makes it the
// active match. The imported event log is preserved exactly, legacy outcome
// values included.
func (s *Session) Import(payload []byte) (*Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := ImportMatch(payload)
	if err != nil {
		return nil, err
	}
	s.current = m
	if err := s.store.UpsertMatch(m); err != nil {
		return nil, err
	}
	return m.Clone(), nil
}

// Delete removes a stored match. If the deleted match is the active one,
// the session ends up with no active match.
func (s *Session) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.DeleteMatch(id); err != nil {
		return err
	}
	if s.current != nil && s.current.ID == id {
		s.current = nil
	}
	return nil
}

// Export serializes the active match for download.
func (s *Session) Export() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return nil, ErrNoMatch
	}
	return SerializeMatch(s.current)
}

// Stats computes the aggregated statistics of the active match.
func (s *Session) Stats() (MatchStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return MatchStats{}, ErrNoMatch
	}
	return CalculateStats(s.current), nil
}
