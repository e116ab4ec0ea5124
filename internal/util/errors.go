package util

import "errors"

var (
	ErrUnauthenticated      = errors.New("sign in required")
	ErrModuleNotFound       = errors.New("module not found")
	ErrLessonNotFound       = errors.New("lesson not found")
	ErrUnknownOption        = errors.New("unknown answer option")
	ErrTransitionNotAllowed = errors.New("quiz action not allowed in current state")
	ErrInvalidToken         = errors.New("invalid token")
)
