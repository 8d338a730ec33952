package service

import "errors"

// Доменные ошибки подсистемы. Ошибки валидации и конфликтов возвращаются
// до любых изменений; денежные операции либо применяются целиком,
// либо не оставляют следов.
var (
	ErrLessonNotFound        = errors.New("lesson not found")
	ErrNotAGroupLesson       = errors.New("lesson is not a group lesson")
	ErrGroupNotOpen          = errors.New("group is not open for joining")
	ErrGroupFull             = errors.New("group is full")
	ErrAlreadyParticipant    = errors.New("student is already a participant")
	ErrNotAParticipant       = errors.New("student is not a participant")
	ErrInvitationNotFound    = errors.New("invitation not found")
	ErrInvitationExpired     = errors.New("invitation expired")
	ErrInsufficientCredit    = errors.New("insufficient credit")
	ErrScheduleConflict      = errors.New("schedule conflict")
	ErrOnlyCreatorCanResolve = errors.New("only the group creator can resolve the deadline")
	ErrDeadlineNotPassed     = errors.New("group deadline has not passed")
	ErrInvalidChoice         = errors.New("invalid deadline choice")
	ErrChargeNotPaid         = errors.New("charge is not paid")
	ErrWalletNotFound        = errors.New("wallet not found")
)
