// Package importer parses system export files, merges them into the local
// stores, and builds export documents. Two JSON shapes are understood: the
// app's own export format and PluralKit's system export format.
package importer

import (
	"encoding/json"
	"errors"
)

// ErrUnsupportedFormat is returned when a document matches neither known
// export shape.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Format identifies which export shape a document uses.
type Format int

const (
	FormatUnrecognized Format = iota
	FormatOwn
	FormatPluralKit
)

func (f Format) String() string {
	switch f {
	case FormatOwn:
		return "own"
	case FormatPluralKit:
		return "pluralkit"
	default:
		return "unrecognized"
	}
}

// Sniff classifies a decoded JSON document by structural signature. The
// PluralKit signature is a numeric version plus system id and member list;
// the own-format signature is a system_info block carrying an export date.
// Exact version values are not required, so minor schema drift still
// classifies correctly.
func Sniff(doc map[string]any) Format {
	if isNumber(doc["version"]) {
		if _, ok := doc["id"]; ok {
			if _, ok := doc["members"]; ok {
				return FormatPluralKit
			}
		}
	}

	if info, ok := doc["system_info"].(map[string]any); ok {
		if _, ok := info["export_date"]; ok {
			return FormatOwn
		}
	}

	return FormatUnrecognized
}

func isNumber(v any) bool {
	switch v.(type) {
	case float64, json.Number, int:
		return true
	default:
		return false
	}
}
