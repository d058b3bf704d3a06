package domain

// RawEvent is one timestamped marker from the import layer. The label may
// carry an encoded sub-schema (bracketed key/value pairs, delimited tokens,
// or a bare code); Attrs holds any attributes the importer already split out.
// Events are read-only once handed to the engine.
type RawEvent struct {
	Index int               `json:"index"`
	Onset float64           `json:"onset"` // seconds from recording start
	Label string            `json:"label"`
	Attrs map[string]string `json:"attrs,omitempty"`
}
