package history

import "strings"

// Status es el estado persistido de una toma.
// @Enum planned, taken, skipped
type Status string

const (
	StatusPlanned Status = "planned"
	StatusTaken   Status = "taken"
	StatusSkipped Status = "skipped"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPlanned, StatusTaken, StatusSkipped:
		return true
	}
	return false
}

// normalizeLegacyStatus mapea estados de versiones viejas al conjunto actual.
func normalizeLegacyStatus(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "completed", "done":
		return StatusTaken
	case "missed":
		return StatusSkipped
	default:
		return StatusPlanned
	}
}

// DayState resume un día del calendario según los display status.
type DayState string

const (
	DayAllTaken  DayState = "all_taken"
	DaySomeTaken DayState = "some_taken"
	DayAllSkip   DayState = "all_skipped"
	DayPending   DayState = "pending"
)
