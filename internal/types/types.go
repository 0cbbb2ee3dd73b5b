package types

// Field names every record carries.
const (
	FieldName  = "name"
	FieldPrice = "price"
	FieldImage = "image_url"
	FieldURL   = "url"
)

// Unavailable is substituted when no candidate in a required field's chain
// yields a value.
const Unavailable = "unavailable"

// RequiredFields lists the fields present on every record.
var RequiredFields = []string{FieldName, FieldPrice, FieldImage, FieldURL}

// Record is a flat field -> value mapping for one catalog item.
type Record map[string]string

// Name returns the record's name field.
func (r Record) Name() string { return r[FieldName] }

// URL returns the record's url field.
func (r Record) URL() string { return r[FieldURL] }

// Clone returns a copy that shares no state with r.
func (r Record) Clone() Record {
	c := make(Record, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

// PageRef identifies one pagination step.
type PageRef struct {
	// Index is 1-based across the whole site run.
	Index int
	// URL is the navigation target. Empty when the page is reached by
	// interacting with the current document (clicks, load-more).
	URL string
	// Label names the category for list strategies.
	Label string
}

// Interactive reports whether the page was reached without navigation.
func (p PageRef) Interactive() bool { return p.URL == "" }

// PageResult is the outcome of fetching one page.
type PageResult struct {
	Page      PageRef
	Records   []Record
	CardCount int
	Blocked   bool
	Signature string
	Exhausted bool
	Attempts  int
	// Transient counts attempts where the wait selector never appeared.
	Transient int
}

// Empty reports whether the page produced no usable cards and was not blocked.
func (r PageResult) Empty() bool {
	return !r.Blocked && r.CardCount == 0
}
