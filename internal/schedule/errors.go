package schedule

import "errors"

var (
	ErrDuplicateID     = errors.New("schedule id already exists")
	ErrNotFound        = errors.New("schedule not found")
	ErrInvalidSchedule = errors.New("invalid schedule")
	ErrCallback        = errors.New("lock callback failed")
	ErrPersistence     = errors.New("schedule persistence failed")
)
