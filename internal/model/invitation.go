package model

import "time"

// Invitation represents a shareable join token for a group lesson.
// Created once together with the lesson, read-only afterwards. The
// maxParticipants snapshot is frozen at creation time so later lesson
// edits cannot change the price joiners were invited at.
type Invitation struct {
	ID              int64     `json:"id"`
	LessonID        int64     `json:"lesson_id"`
	CreatorID       int64     `json:"creator_id"`
	Token           string    `json:"token"`
	MaxParticipants int       `json:"max_participants"`
	ExpiresAt       time.Time `json:"expires_at"`
	CreatedAt       time.Time `json:"created_at"`
}

// IsExpired checks whether the token can still be redeemed. Expiry is
// derived from the timestamp, never stored as a state transition.
func (i *Invitation) IsExpired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}
