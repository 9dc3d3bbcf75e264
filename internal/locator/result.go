package locator

// Element is the handle a resolved field exposes to the flows. The real
// implementation wraps a Playwright element handle; tests substitute fakes.
type Element interface {
	Click() error
	Type(text string) error
}

// Result is a tree of optional matches mirroring the shape of the query it
// was resolved from. All accessors are nil-safe, so a flow can navigate to a
// deeply nested field and only then check presence:
//
//	res.Field("notification_prompt").Field("not_now_btn").Present()
type Result struct {
	fields map[string]*Match
}

// Match is one resolved field: an element handle, nested child matches, or
// both.
type Match struct {
	element Element
	fields  map[string]*Match
}

func NewResult(fields map[string]*Match) *Result {
	return &Result{fields: fields}
}

func NewMatch(element Element, fields map[string]*Match) *Match {
	return &Match{element: element, fields: fields}
}

func (r *Result) Field(name string) *Match {
	if r == nil {
		return nil
	}
	return r.fields[name]
}

func (m *Match) Field(name string) *Match {
	if m == nil {
		return nil
	}
	return m.fields[name]
}

// Present reports whether the field matched anything: an element of its own
// or at least one resolved child.
func (m *Match) Present() bool {
	return m != nil && (m.element != nil || len(m.fields) > 0)
}

// Element returns the matched handle, or nil for absent fields and for
// predicate-less container fields.
func (m *Match) Element() Element {
	if m == nil {
		return nil
	}
	return m.element
}
