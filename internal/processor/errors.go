package processor

import "fmt"

// UnresolvedParentError is recorded for an attachment whose parent was not created in
// the target org. No fetch or create is attempted for it.
type UnresolvedParentError struct {
	AttachmentID string
	ParentID     string
}

func (e *UnresolvedParentError) Error() string {
	return fmt.Sprintf("attachment %s: unresolved parent %s", e.AttachmentID, e.ParentID)
}

// PhaseError aborts a run. Phase names the step that failed.
type PhaseError struct {
	Phase string
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}
