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
	"encoding/json"
	"errors"
	"net/mail"
)

// isValidEmail checks if the string is a valid email address.
func isValidEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}

// Validation errors for imported match documents. The messages are part of
// the API surface: clients display them verbatim, so they must stay stable.
var (
	ErrInvalidDataFormat      = errors.New("invalid data format")
	ErrInvalidID              = errors.New("missing or invalid id")
	ErrInvalidDate            = errors.New("missing or invalid date")
	ErrInvalidHomeTeam        = errors.New("missing or invalid homeTeam")
	ErrInvalidAwayTeam        = errors.New("missing or invalid awayTeam")
	ErrInvalidEvents          = errors.New("missing or invalid events")
	ErrInvalidEventFormat     = errors.New("invalid event format")
	ErrInvalidEventProperties = errors.New("invalid event properties")
	ErrInvalidEventType       = errors.New("invalid event type")
	ErrMissingOutcome         = errors.New("missing outcome for shot event")
)

// requiredEventFields are the keys every event object must carry. Presence is
// what matters: a zero minute or timestamp is unusual but valid.
var requiredEventFields = []string{"id", "type", "position", "zone", "minute", "timestamp"}

func isJSONString(raw json.RawMessage, allowEmpty bool) bool {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return false
	}
	return allowEmpty || s != ""
}

func isValidTeamObject(raw json.RawMessage) bool {
	var t Team
	if err := json.Unmarshal(raw, &t); err != nil {
		return false
	}
	return t.ID != "" && t.Name != ""
}

// ImportMatch decodes and validates an externally supplied match document.
// Checks run in a fixed order and stop at the first failure so that a given
// malformed input always reports the same error. On success the match is
// returned fully parsed with its event order preserved.
func ImportMatch(payload []byte) (*Match, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(payload, &doc); err != nil || doc == nil {
		return nil, ErrInvalidDataFormat
	}

	if raw, ok := doc["id"]; !ok || !isJSONString(raw, false) {
		return nil, ErrInvalidID
	}
	if raw, ok := doc["date"]; !ok || !isJSONString(raw, false) {
		return nil, ErrInvalidDate
	}
	if raw, ok := doc["homeTeam"]; !ok || !isValidTeamObject(raw) {
		return nil, ErrInvalidHomeTeam
	}
	if raw, ok := doc["awayTeam"]; !ok || !isValidTeamObject(raw) {
		return nil, ErrInvalidAwayTeam
	}

	rawEvents, ok := doc["events"]
	if !ok {
		return nil, ErrInvalidEvents
	}
	var events []json.RawMessage
	// A nil slice after a successful unmarshal means the value was the JSON
	// literal null, which is not an array.
	if err := json.Unmarshal(rawEvents, &events); err != nil || events == nil {
		return nil, ErrInvalidEvents
	}

	for _, rawEvent := range events {
		if err := validateEvent(rawEvent); err != nil {
			return nil, err
		}
	}

	var m Match
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, ErrInvalidDataFormat
	}
	m.normalize()
	return &m, nil
}

// validateEvent checks a single raw event object. The outcome value itself is
// not constrained: older exports carry "missed" where newer ones write
// "off_target", and both must import cleanly.
func validateEvent(raw json.RawMessage) error {
	var evt map[string]json.RawMessage
	if err := json.Unmarshal(raw, &evt); err != nil || evt == nil {
		return ErrInvalidEventFormat
	}
	for _, field := range requiredEventFields {
		if _, ok := evt[field]; !ok {
			return ErrInvalidEventProperties
		}
	}

	var typ string
	if err := json.Unmarshal(evt["type"], &typ); err != nil || !isKnownEventType(typ) {
		return ErrInvalidEventType
	}

	if requiresOutcome(typ) {
		if _, ok := evt["outcome"]; !ok {
			return ErrMissingOutcome
		}
	}
	return nil
}

// SerializeMatch renders a match as the indented JSON document the import
// path accepts, so export followed by import reproduces the same match.
func SerializeMatch(m *Match) ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}
