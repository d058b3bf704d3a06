package domain

type StructureFormat string

const (
	FormatBracket   StructureFormat = "bracket"
	FormatFields    StructureFormat = "fields"
	FormatDelimiter StructureFormat = "delimiter"
	FormatSimple    StructureFormat = "simple"
	FormatUnknown   StructureFormat = "unknown"
)

func ValidStructureFormat(f string) bool {
	switch StructureFormat(f) {
	case FormatBracket, FormatFields, FormatDelimiter, FormatSimple, FormatUnknown:
		return true
	}
	return false
}

// DetectedStructure is the result of sampling the event stream and deciding
// which textual encoding the markers use. Confidence is the fraction of
// sampled events matching the winning format.
type DetectedStructure struct {
	Format       StructureFormat `json:"format"`
	Confidence   float64         `json:"confidence"`
	EventPattern string          `json:"event_pattern,omitempty"` // representative matching label
}
