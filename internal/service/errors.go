package service

import (
	"errors"
	"strings"
)

// errSubjectsChanged means the row was reassigned between the unlocked read
// and the locked re-read. Callers see it as a persistence failure and retry.
var errSubjectsChanged = errors.New("appointment was reassigned concurrently")

type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, "; ")
}
