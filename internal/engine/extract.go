package engine

import (
	"strconv"
	"strings"

	"github.com/evokedlab/evoked/internal/domain"
)

// FieldExtractor pulls named fields out of one raw event. An extractor is
// selected once per run from the detected structure and reused for every
// event, so implementations must be stateless.
type FieldExtractor interface {
	Extract(ev domain.RawEvent) map[string]string
}

// ExtractorFor returns the extractor for the given format. Unknown format
// gets a fallback that tries bracket parsing, then importer attributes,
// then the whole label as an atomic code.
func ExtractorFor(format domain.StructureFormat) FieldExtractor {
	switch format {
	case domain.FormatBracket:
		return bracketExtractor{}
	case domain.FormatFields:
		return attrExtractor{}
	case domain.FormatDelimiter:
		return delimiterExtractor{}
	case domain.FormatSimple:
		return atomicExtractor{}
	default:
		return fallbackExtractor{}
	}
}

// bracketExtractor parses labels like "stim[cond: G23, word: y, trial: 7]"
// into key/value pairs. Pairs without a colon are skipped.
type bracketExtractor struct{}

func (bracketExtractor) Extract(ev domain.RawEvent) map[string]string {
	open := strings.Index(ev.Label, "[")
	if open < 0 {
		return nil
	}
	end := strings.Index(ev.Label[open:], "]")
	if end < 0 {
		return nil
	}
	inner := ev.Label[open+1 : open+end]
	if inner == "" {
		return nil
	}

	fields := make(map[string]string)
	for _, part := range strings.Split(inner, ",") {
		key, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" {
			continue
		}
		fields[key] = value
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// attrExtractor reads the attribute map the importer already separated out.
type attrExtractor struct{}

func (attrExtractor) Extract(ev domain.RawEvent) map[string]string {
	if len(ev.Attrs) == 0 {
		return nil
	}
	return ev.Attrs
}

// delimiterExtractor splits labels like "G23_word_103" on underscores and
// hyphens into positional fields named field1..fieldN.
type delimiterExtractor struct{}

func (delimiterExtractor) Extract(ev domain.RawEvent) map[string]string {
	tokens := strings.FieldsFunc(ev.Label, func(r rune) bool {
		return r == '_' || r == '-'
	})
	if len(tokens) < 2 {
		return nil
	}
	fields := make(map[string]string, len(tokens))
	for i, tok := range tokens {
		fields["field"+strconv.Itoa(i+1)] = tok
	}
	return fields
}

// atomicExtractor treats the whole label as a single opaque code.
type atomicExtractor struct{}

func (atomicExtractor) Extract(ev domain.RawEvent) map[string]string {
	label := strings.TrimSpace(ev.Label)
	if label == "" {
		return nil
	}
	return map[string]string{"type": label}
}

// fallbackExtractor is used when no structure was detected: bracket parsing
// is the most information-preserving, so try it first, then the raw
// attributes, then degrade to a single atomic code.
type fallbackExtractor struct{}

func (fallbackExtractor) Extract(ev domain.RawEvent) map[string]string {
	if fields := (bracketExtractor{}).Extract(ev); fields != nil {
		return fields
	}
	if fields := (attrExtractor{}).Extract(ev); fields != nil {
		return fields
	}
	return atomicExtractor{}.Extract(ev)
}
