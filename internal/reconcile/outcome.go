package reconcile

// State is a step of the per-event state machine.
type State string

const (
	StateResolving    State = "resolving"
	StateLocalUpsert  State = "local_upsert"
	StateRemoteUpsert State = "remote_upsert"
	StateLinkBack     State = "link_back"
	StateDone         State = "done"
	StateAborted      State = "aborted"
)

// LegStatus is the result of one leg.
type LegStatus string

const (
	LegSkipped LegStatus = "skipped"
	LegCreated LegStatus = "created"
	LegUpdated LegStatus = "updated"
	// LegMerged means a local create lost a uniqueness race and updated the winner.
	LegMerged LegStatus = "merged"
	LegFailed LegStatus = "failed"
)

// Outcome records how an event was handled.
type Outcome struct {
	State State
	// Reason explains an Aborted state.
	Reason      string
	ContactID   string
	CRMPersonID string
	Local       LegStatus
	Remote      LegStatus
	LinkBack    LegStatus
	Notify      LegStatus
	// Err joins every leg error.
	Err error
}
