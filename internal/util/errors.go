package util

import "errors"

var (
	ErrProcessNotFound     = errors.New("process not found")
	ErrProcessNotPublished = errors.New("process not published")
	ErrNoQuestions         = errors.New("process has no questions")
	ErrProfileNotFound     = errors.New("profile not found")
	ErrInvalidOption       = errors.New("invalid answer option")
)
