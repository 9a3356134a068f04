// Package blob decodes the per-file metadata blob stored in an archive's
// manifest. The blob is a property list in one of two shapes: a flat
// dictionary holding the keys directly, or an archived object graph whose
// values are spread across a "$objects" array. The format is undocumented
// and varies across platform versions, so decoding is best effort.
package blob

import (
	"fmt"
	"math"
	"time"

	"howett.net/plist"

	"github.com/drsanjula/iOSBackupExplorer/internal/ibex"
)

// Recognised metadata keys.
const (
	keySize         = "Size"
	keyMode         = "Mode"
	keyLastModified = "LastModified"
	keyBirth        = "Birth"
	keyObjects      = "$objects"
)

type shape int

const (
	shapeUnknown shape = iota
	shapeDict
	shapeObjects
)

func (s shape) String() string {
	switch s {
	case shapeDict:
		return "dict"
	case shapeObjects:
		return "objects"
	default:
		return "unknown"
	}
}

// parsed is the tagged result of reading a blob. Exactly one of dict or
// objects is set, selected by shape.
type parsed struct {
	shape   shape
	dict    map[string]any
	objects []any
}

// parse classifies the blob's top-level structure.
func parse(data []byte) (p parsed, err error) {
	defer func() {
		if r := recover(); r != nil {
			p, err = parsed{}, fmt.Errorf("%w: plist parser panic: %v", ibex.ErrDecodeFailure, r)
		}
	}()

	var top any
	if _, err := plist.Unmarshal(data, &top); err != nil {
		return parsed{}, fmt.Errorf("%w: %v", ibex.ErrDecodeFailure, err)
	}

	dict, ok := top.(map[string]any)
	if !ok {
		return parsed{shape: shapeUnknown}, nil
	}

	raw, archived := dict[keyObjects]
	if !archived {
		return parsed{shape: shapeDict, dict: dict}, nil
	}
	objects, ok := raw.([]any)
	if !ok {
		return parsed{shape: shapeUnknown}, nil
	}
	return parsed{shape: shapeObjects, objects: objects}, nil
}

// Decode returns whatever metadata the blob carries. It never fails: empty,
// malformed or unrecognised blobs yield an empty Metadata.
func Decode(data []byte) ibex.Metadata {
	m, _ := DecodeStrict(data)
	return m
}

// DecodeStrict is Decode that also reports why nothing was decoded.
// The returned error wraps ibex.ErrDecodeFailure; the Metadata is always usable.
func DecodeStrict(data []byte) (ibex.Metadata, error) {
	if len(data) == 0 {
		return ibex.Metadata{}, nil
	}

	p, err := parse(data)
	if err != nil {
		return ibex.Metadata{}, err
	}

	var m ibex.Metadata
	switch p.shape {
	case shapeDict:
		adopt(&m, p.dict)
	case shapeObjects:
		for _, obj := range p.objects {
			if d, ok := obj.(map[string]any); ok {
				adopt(&m, d)
			}
		}
	case shapeUnknown:
		return ibex.Metadata{}, fmt.Errorf("%w: unrecognised blob structure", ibex.ErrDecodeFailure)
	}
	return m, nil
}

// adopt copies recognised keys from d into any field of m that is still unset.
func adopt(m *ibex.Metadata, d map[string]any) {
	if m.Size == nil {
		if v, ok := toInt64(d[keySize]); ok {
			m.Size = &v
		}
	}
	if m.Mode == nil {
		if v, ok := toInt64(d[keyMode]); ok {
			m.Mode = &v
		}
	}
	if m.LastModified == nil {
		if v, ok := toTime(d[keyLastModified]); ok {
			m.LastModified = &v
		}
	}
	if m.Birth == nil {
		if v, ok := toTime(d[keyBirth]); ok {
			m.Birth = &v
		}
	}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case float32:
		return int64(n), true
	default:
		return 0, false
	}
}

// toTime accepts Unix seconds or a native plist date.
func toTime(v any) (time.Time, bool) {
	if t, ok := v.(time.Time); ok {
		return t.UTC(), true
	}
	var secs float64
	switch n := v.(type) {
	case float64:
		secs = n
	case float32:
		secs = float64(n)
	default:
		i, ok := toInt64(v)
		if !ok {
			return time.Time{}, false
		}
		secs = float64(i)
	}
	t := ibex.FromUnixSeconds(secs)
	if t.IsZero() {
		return time.Time{}, false
	}
	return t, true
}
