package projection

import (
	"errors"
	"fmt"
)

// InvalidRangeError reports row bounds outside 1 <= start <= end <= total.
type InvalidRangeError struct {
	StartRow  any
	EndRow    any
	Start     int
	End       int
	TotalRows int
	Reason    string
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid row range (startRow=%v, endRow=%v, total=%d): %s", e.StartRow, e.EndRow, e.TotalRows, e.Reason)
}

// ErrNoValidColumns is matched by NoValidColumnsError.
var ErrNoValidColumns = errors.New("no valid columns found in config")

// NoValidColumnsError means none of the configured roles named an existing column.
type NoValidColumnsError struct {
	Requested []string
}

func (e *NoValidColumnsError) Error() string {
	if len(e.Requested) == 0 {
		return ErrNoValidColumns.Error()
	}
	return fmt.Sprintf("%s (requested %v)", ErrNoValidColumns.Error(), e.Requested)
}

func (e *NoValidColumnsError) Is(target error) bool { return target == ErrNoValidColumns }
