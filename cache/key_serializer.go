package cache

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// KeySeparator defines the delimiter used between cache key segments.
const KeySeparator = "::"

// KeySerializer turns a structured QueryKey into the string used by the
// backing entry store. Equal keys must produce equal strings and distinct
// keys distinct strings.
type KeySerializer interface {
	SerializeKey(key QueryKey) string
}

var defaultSerializer = NewDefaultKeySerializer()

// defaultKeySerializer writes entity and kind first, followed by the
// non-zero scope components in a fixed order as name=value segments, so
// that string prefixes follow the entity/kind hierarchy.
type defaultKeySerializer struct{}

// NewDefaultKeySerializer creates a new instance of the default key serializer.
func NewDefaultKeySerializer() KeySerializer {
	return &defaultKeySerializer{}
}

var segmentEscaper = strings.NewReplacer("%", "%25", ":", "%3A", "=", "%3D")

func (s *defaultKeySerializer) SerializeKey(k QueryKey) string {
	parts := make([]string, 0, 8)
	parts = append(parts, string(k.Entity), string(k.Kind))

	if k.Owner != "" {
		parts = append(parts, "owner="+segmentEscaper.Replace(k.Owner))
	}
	if k.ID != uuid.Nil {
		parts = append(parts, "id="+k.ID.String())
	}
	if k.From != "" {
		parts = append(parts, "from="+k.From)
	}
	if k.To != "" {
		parts = append(parts, "to="+k.To)
	}
	if k.Category != "" {
		parts = append(parts, "category="+segmentEscaper.Replace(k.Category))
	}
	if k.Limit != 0 {
		parts = append(parts, "limit="+strconv.Itoa(k.Limit))
	}

	return strings.Join(parts, KeySeparator)
}
