package models

import "errors"

var (
	ErrValidation           = errors.New("validation failed")
	ErrNotFound             = errors.New("task not found")
	ErrConflict             = errors.New("conflict")
	ErrPersistence          = errors.New("persistence failed")
	ErrConfirmationRequired = errors.New("confirmation required")
)
