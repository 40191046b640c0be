package tree

// Value is a parsed configuration value, either a [Scalar] or a [Map].
type Value interface {
	isValue()
}

// Scalar is a leaf value.
type Scalar string

// Map is an ordered mapping from keys to values.
type Map []Entry

// Entry is a single key of a [Map].
type Entry struct {
	Key   string
	Value Value
}

func (Scalar) isValue() {}
func (Map) isValue()    {}

// Lookup returns the value stored under key.
func (m Map) Lookup(key string) (Value, bool) {
	for _, e := range m {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// Keys returns the keys of m in order.
func (m Map) Keys() []string {
	keys := make([]string, len(m))
	for i, e := range m {
		keys[i] = e.Key
	}
	return keys
}
