package entitycache

// Status is the outcome of a single-row lookup.
type Status int

const (
	Found Status = iota
	NotFound
	Skipped
	StoreError
)

func (s Status) String() string {
	switch s {
	case Found:
		return "found"
	case NotFound:
		return "not_found"
	case Skipped:
		return "skipped"
	default:
		return "store_error"
	}
}

// Result is the explicit outcome of Lookup and LookupRecord. Entity is never
// nil: it is the table sentinel unless Status is Found.
type Result struct {
	Entity *Entity
	Status Status
	Err    error
}

// OK reports whether a row was found.
func (r Result) OK() bool {
	return r.Status == Found
}
