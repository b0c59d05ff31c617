package resolver

import "fmt"

// UnknownModeError is returned when no loaded dataset matches a mode.
type UnknownModeError struct {
	Mode string
}

func (e *UnknownModeError) Error() string {
	return fmt.Sprintf("unknown mode %q", e.Mode)
}

// OutOfRangeError is returned by CheckYear for years outside the advertised
// range. Resolve never returns it; it clamps instead.
type OutOfRangeError struct {
	Year     int
	Min, Max int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("year %d outside %d-%d", e.Year, e.Min, e.Max)
}

// DuplicateDatasetError is returned when two catalogs define the same dataset.
type DuplicateDatasetError struct {
	Name        string
	First, Then string
}

func (e *DuplicateDatasetError) Error() string {
	return fmt.Sprintf("dataset %q defined by both %s and %s", e.Name, e.First, e.Then)
}
