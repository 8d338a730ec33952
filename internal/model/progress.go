package model

import "time"

// StudentProgress учебный прогресс студента, продвигается
// ровно один раз на каждое завершённое занятие.
type StudentProgress struct {
	ID               int64     `json:"id"`
	StudentID        int64     `json:"student_id"`
	LessonsCompleted int       `json:"lessons_completed"`
	UpdatedAt        time.Time `json:"updated_at"`
}
