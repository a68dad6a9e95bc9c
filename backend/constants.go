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

const (
	CurrentSchemaVersion  = 1
	CurrentStorageVersion = 1
	CurrentAppVersion     = "0.1.0"
)

// Event Types
const (
	EventTypeShot     = "shot"
	EventTypeConceded = "conceded"
	EventTypeBallLoss = "ball_loss"
	EventTypeRecovery = "recovery"
)

// Shot Outcomes
const (
	OutcomeOnTarget  = "on_target"
	OutcomeOffTarget = "off_target"
	OutcomeBlocked   = "blocked"
	OutcomeGoal      = "goal"
	// OutcomeMissedLegacy is deprecated but tolerated on import for old exports.
	OutcomeMissedLegacy = "missed"
)

// Halves
const (
	FirstHalf  = 1
	SecondHalf = 2
)

// isKnownEventType reports whether t is one of the four event type tags.
func isKnownEventType(t string) bool {
	switch t {
	case EventTypeShot, EventTypeConceded, EventTypeBallLoss, EventTypeRecovery:
		return true
	}
	return false
}

// requiresOutcome reports whether events of type t must carry an outcome.
func requiresOutcome(t string) bool {
	return t == EventTypeShot || t == EventTypeConceded
}

// isKnownOutcome reports whether o is an outcome the app itself emits.
// Legacy values (see OutcomeMissedLegacy) are accepted on import but never
// produced for new events.
func isKnownOutcome(o string) bool {
	switch o {
	case OutcomeOnTarget, OutcomeOffTarget, OutcomeBlocked, OutcomeGoal:
		return true
	}
	return false
}
