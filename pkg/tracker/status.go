package tracker

import (
	"encoding/json"
	"fmt"
)

// Status represents the lifecycle status of a tracked operation.
type Status string

const (
	// StatusPending indicates the operation has been created but not yet started.
	StatusPending Status = "pending"

	// StatusRunning indicates the operation is currently executing.
	StatusRunning Status = "running"

	// StatusCompleted indicates the operation finished successfully.
	StatusCompleted Status = "completed"

	// StatusFailed indicates the operation finished with an error.
	StatusFailed Status = "failed"

	// StatusCancelled indicates the operation was cancelled before finishing.
	StatusCancelled Status = "cancelled"
)

// IsTerminal returns true if the status represents a final state.
// Terminal states are absorbing: no lifecycle transition leaves them.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// IsActive returns true if the operation is pending or running.
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusRunning
}

// Validate checks if the status is valid.
func (s Status) Validate() error {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled:
		return nil
	default:
		return fmt.Errorf("invalid operation status: %s", s)
	}
}

// Dashboard returns the status spelling used by the dashboard vocabulary.
// The dashboard renders "running" as "in_progress"; every other status is
// spelled the same on both sides. The canonical internal name stays
// "running" and the mapping happens only at presentation boundaries.
func (s Status) Dashboard() string {
	if s == StatusRunning {
		return "in_progress"
	}
	return string(s)
}

// ParseStatus converts an external status spelling to the canonical Status.
// It accepts both "running" and the dashboard spelling "in_progress".
func ParseStatus(v string) (Status, error) {
	if v == "in_progress" {
		return StatusRunning, nil
	}
	s := Status(v)
	if err := s.Validate(); err != nil {
		return "", err
	}
	return s, nil
}

// MarshalJSON implements custom JSON marshaling for type-safe enum serialization.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements custom JSON unmarshaling with validation.
// The dashboard spelling "in_progress" is normalized to "running".
func (s *Status) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	parsed, err := ParseStatus(str)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Level represents the severity level of an operation log entry.
type Level string

const (
	// LevelDebug is for verbose diagnostic entries.
	LevelDebug Level = "debug"

	// LevelInfo is for informational entries.
	LevelInfo Level = "info"

	// LevelWarning is for entries that should be reviewed.
	LevelWarning Level = "warning"

	// LevelError is for entries recording failures.
	LevelError Level = "error"
)

// Validate checks if the log level is valid.
func (l Level) Validate() error {
	switch l {
	case LevelDebug, LevelInfo, LevelWarning, LevelError:
		return nil
	default:
		return fmt.Errorf("invalid log level: %s", l)
	}
}

// RestorePointType identifies the kind of reversible action a restore point
// captures. The set of values is a contract with the external rollback
// executor: adding a new restorable action means adding a value here and a
// matching executor branch. The tracking core never interprets the data.
type RestorePointType string

const (
	// RestorePointCampaignCreation captures a created campaign so it can be removed.
	RestorePointCampaignCreation RestorePointType = "campaign_creation"

	// RestorePointCampaignUpdate captures prior field values of an updated campaign.
	RestorePointCampaignUpdate RestorePointType = "campaign_update"

	// RestorePointAdGroupCreation captures a created ad group.
	RestorePointAdGroupCreation RestorePointType = "ad_group_creation"

	// RestorePointKeywordCreation captures created keywords.
	RestorePointKeywordCreation RestorePointType = "keyword_creation"
)
