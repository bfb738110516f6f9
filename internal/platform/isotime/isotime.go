// Package isotime stores timestamps in MongoDB as ISO-8601 UTC strings so
// records stay readable by services that write them the same way.
package isotime

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"
)

// Layout is fixed width so stored values sort lexicographically.
const Layout = "2006-01-02T15:04:05.000000Z"

// accepted layouts for decoding, tried in order. Naive values are UTC.
var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
}

// Time is a time.Time that encodes to BSON as a string.
type Time time.Time

func From(t time.Time) Time {
	return Time(t.UTC())
}

// FromPtr returns nil for a nil t.
func FromPtr(t *time.Time) *Time {
	if t == nil {
		return nil
	}
	v := From(*t)
	return &v
}

func (t Time) UTC() time.Time {
	return time.Time(t).UTC()
}

// PtrUTC returns nil for a nil t.
func (t *Time) PtrUTC() *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

func (t Time) String() string {
	return t.UTC().Format(Layout)
}

// Parse reads an ISO-8601 timestamp with or without a zone offset.
func Parse(value string) (time.Time, error) {
	for _, layout := range layouts {
		if parsed, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("isotime: unrecognised timestamp %q", value)
}

func (t Time) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bsontype.String, bsoncore.AppendString(nil, t.String()), nil
}

// UnmarshalBSONValue accepts strings and native BSON datetimes.
func (t *Time) UnmarshalBSONValue(typ bsontype.Type, data []byte) error {
	value := bsoncore.Value{Type: typ, Data: data}
	switch typ {
	case bsontype.String:
		raw, ok := value.StringValueOK()
		if !ok {
			return fmt.Errorf("isotime: malformed string value")
		}
		parsed, err := Parse(raw)
		if err != nil {
			return err
		}
		*t = Time(parsed)
	case bsontype.DateTime:
		ms, ok := value.DateTimeOK()
		if !ok {
			return fmt.Errorf("isotime: malformed datetime value")
		}
		*t = Time(time.UnixMilli(ms).UTC())
	case bsontype.Null, bsontype.Undefined:
		*t = Time{}
	default:
		return fmt.Errorf("isotime: cannot decode %s into a timestamp", typ)
	}
	return nil
}
