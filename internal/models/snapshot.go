package models

// PostSnapshot is an immutable copy of a post taken right before a transition.
// Post has no reference-typed fields, so copying the struct is a deep copy.
type PostSnapshot struct {
	post Post
}

// NewPostSnapshot captures the current state of p.
func NewPostSnapshot(p Post) PostSnapshot {
	return PostSnapshot{post: p}
}

// ID returns the identifier of the captured post.
func (s PostSnapshot) ID() uint {
	return s.post.ID
}

// Status returns the captured status.
func (s PostSnapshot) Status() Status {
	return s.post.Status
}

// Post returns a fresh copy of the captured record.
func (s PostSnapshot) Post() Post {
	return s.post
}

// ActionKind tags the variant held by a RecentAction.
type ActionKind int

const (
	ActionEmpty ActionKind = iota
	ActionSingle
	ActionBatch
)

func (k ActionKind) String() string {
	switch k {
	case ActionSingle:
		return "single"
	case ActionBatch:
		return "batch"
	default:
		return "empty"
	}
}

// RecentAction is the reversible record of the most recent transition.
// The zero value is the Empty variant.
type RecentAction struct {
	kind      ActionKind
	snapshots []PostSnapshot
}

// NewSingleAction records a single-post transition.
func NewSingleAction(snapshot PostSnapshot) RecentAction {
	return RecentAction{kind: ActionSingle, snapshots: []PostSnapshot{snapshot}}
}

// NewBatchAction records a batch transition. An empty batch is valid.
func NewBatchAction(snapshots []PostSnapshot) RecentAction {
	cp := make([]PostSnapshot, len(snapshots))
	copy(cp, snapshots)
	return RecentAction{kind: ActionBatch, snapshots: cp}
}

// Kind returns the variant tag.
func (a RecentAction) Kind() ActionKind {
	return a.kind
}

// IsEmpty reports whether the action is the Empty variant.
func (a RecentAction) IsEmpty() bool {
	return a.kind == ActionEmpty
}

// Snapshots returns the captured snapshots in capture order.
func (a RecentAction) Snapshots() []PostSnapshot {
	cp := make([]PostSnapshot, len(a.snapshots))
	copy(cp, a.snapshots)
	return cp
}

// Len returns the number of captured snapshots.
func (a RecentAction) Len() int {
	return len(a.snapshots)
}
