package roster

import "context"

// StudentIdentity is the per-scan snapshot of a student record. The roster
// subsystem owns and mutates these rows; the scan path only reads them.
type StudentIdentity struct {
	LRN             string  `json:"learner_reference_number"`
	RFIDTag         *string `json:"rfid_tag,omitempty"`
	FirstName       string  `json:"first_name"`
	LastName        string  `json:"last_name"`
	GradeLevel      string  `json:"grade_level"`
	SchoolYear      string  `json:"school_year"`
	GuardianContact *string `json:"guardian_contact_number,omitempty"`
	ParentEmail     *string `json:"parent_email,omitempty"`
}

// FullName returns "First Last" for operator messages.
func (s StudentIdentity) FullName() string {
	return s.FirstName + " " + s.LastName
}

// Store reads student identities.
type Store interface {
	// ResolveByTag maps an RFID tag to the student currently holding it.
	// Returns nil, nil when no student holds the tag. Tags are reassignable;
	// resolution always reflects the current assignment. No side effects.
	ResolveByTag(ctx context.Context, tag string) (*StudentIdentity, error)

	// GetByLRN fetches a student by learner reference number. Returns
	// nil, nil when unknown. Used by the notification worker.
	GetByLRN(ctx context.Context, lrn string) (*StudentIdentity, error)
}
