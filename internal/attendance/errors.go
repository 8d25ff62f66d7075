package attendance

import (
	"errors"

	"rollcall/internal/timewindow"
)

var (
	ErrStaffNotFound    = errors.New("staff not found")
	ErrStudentNotFound  = errors.New("student not found")
	ErrScheduleNotFound = errors.New("invalid or expired class schedule")
	ErrInvalidPIN       = errors.New("invalid PIN")
	ErrInvalidAdminPIN  = errors.New("invalid admin PIN")
	ErrAlreadySubmitted = errors.New("you have already submitted")
	ErrScheduleExists   = errors.New("a class is already scheduled at this date and start time")

	// ErrBeforeStart and ErrExpired are the timing rejections of the submission gate.
	ErrBeforeStart = timewindow.ErrBeforeStart
	ErrExpired     = timewindow.ErrExpired

	// ErrDuplicateKey is returned by stores when a write hits a unique constraint.
	ErrDuplicateKey = errors.New("duplicate key")
)

// ValidationError reports a caller-correctable problem with a request.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func invalid(msg string) error { return &ValidationError{Msg: msg} }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
