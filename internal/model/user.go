package model

import "time"

type User struct {
	ID              int64     `json:"id"`
	FirstName       string    `json:"first_name"`
	LastName        string    `json:"last_name"`
	IsTeacher       bool      `json:"is_teacher"`
	HourlyRateCents int64     `json:"hourly_rate_cents"` // эталонная почасовая ставка, только для учителей
	CreatedAt       time.Time `json:"created_at"`
}
