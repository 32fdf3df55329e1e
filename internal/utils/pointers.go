package utils

import (
	"fmt"
	"time"
)

func TimePtr(t time.Time) *time.Time {
	return &t
}

func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("%s: %w", msg, err)
}

func WrapErrorf(err error, msg string, args ...any) error {
	if err == nil {
		return nil
	}

	return WrapError(err, fmt.Sprintf(msg, args...))
}
