package search

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
)

var ErrInvalidUUID = errors.New("invalid document uuid")

const compendiumPrefix = "Compendium"

// ParseUUID parses world UUIDs ("Actor.<id>", including embedded documents
// "Actor.<id>.Item.<id>") and both compendium shapes: the newer
// "Compendium.<pkg>.<pack>.<Type>.<id>", which fills Type, and the older
// "Compendium.<pkg>.<pack>.<id>", which fills DocumentType from packType.
func ParseUUID(uuid string, packType func(collection string) string) (ParsedUUID, error) {
	parts := strings.Split(uuid, ".")
	if len(parts) < 2 || lo.Contains(parts, "") {
		return ParsedUUID{}, fmt.Errorf("%q: %w", uuid, ErrInvalidUUID)
	}

	if parts[0] != compendiumPrefix {
		if len(parts)%2 != 0 {
			return ParsedUUID{}, fmt.Errorf("%q: %w", uuid, ErrInvalidUUID)
		}
		n := len(parts)
		return ParsedUUID{Type: parts[n-2], ID: parts[n-1]}, nil
	}

	switch {
	case len(parts) == 4:
		collection := parts[1] + "." + parts[2]
		var docType string
		if packType != nil {
			docType = packType(collection)
		}
		if docType == "" {
			return ParsedUUID{}, fmt.Errorf("%q: unknown pack %s: %w", uuid, collection, ErrInvalidUUID)
		}
		return ParsedUUID{DocumentType: docType, ID: parts[3]}, nil
	case len(parts) >= 5 && len(parts)%2 == 1:
		n := len(parts)
		return ParsedUUID{Type: parts[n-2], ID: parts[n-1]}, nil
	}
	return ParsedUUID{}, fmt.Errorf("%q: %w", uuid, ErrInvalidUUID)
}
