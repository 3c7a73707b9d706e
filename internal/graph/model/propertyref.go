package model

// Reserved property names. Every node schema declares id and lastupdated;
// firstseen is stamped by the generated statements and may not be declared.
const (
	PropID          = "id"
	PropLastUpdated = "lastupdated"
	PropFirstSeen   = "firstseen"

	// Scope stamps carried on every match-link relationship.
	PropSubResourceLabel = "_sub_resource_label"
	PropSubResourceID    = "_sub_resource_id"
)

// PropertyRef names the source of a property value at load time: a field of
// the current row, or a scope parameter shared by the whole batch.
type PropertyRef struct {
	Name string

	// SetInScope reads the value from the batch scope parameters ($Name)
	// instead of the row (item.Name).
	SetInScope bool

	// ExtraIndex requests a supporting index on this property.
	ExtraIndex bool

	// IgnoreCase makes matcher comparisons on this ref case-insensitive.
	IgnoreCase bool

	// FuzzyAndIgnoreCase makes matcher comparisons case-insensitive
	// substring tests. Takes precedence over IgnoreCase.
	FuzzyAndIgnoreCase bool

	// OneToMany marks the row value as a list of candidate identifiers;
	// matchers connect to every target satisfying any element.
	OneToMany bool
}

// String renders the ref as it appears in a generated statement.
func (r PropertyRef) String() string {
	if r.SetInScope {
		return "$" + r.Name
	}
	return "item." + r.Name
}

// Property pairs a graph attribute name with the ref that supplies its value.
type Property struct {
	Key string
	Ref PropertyRef
}

// Properties is an ordered attribute set. Order is preserved in generated
// statements so compilation stays deterministic.
type Properties []Property

// Get returns the ref declared under key.
func (p Properties) Get(key string) (PropertyRef, bool) {
	for _, prop := range p {
		if prop.Key == key {
			return prop.Ref, true
		}
	}
	return PropertyRef{}, false
}

// Has reports whether key is declared.
func (p Properties) Has(key string) bool {
	_, ok := p.Get(key)
	return ok
}
