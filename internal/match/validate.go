package match

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidDocument is returned when a values or transformations document
// violates the closed schema. It always signals a matcher defect, never bad
// external input.
var ErrInvalidDocument = errors.New("invalid match document")

const addressLength = 20
const immutableLength = 32

var creationValueKeys = map[string]bool{
	"constructorArguments": true,
	"libraries":            true,
	"cborAuxdata":          true,
}

var runtimeValueKeys = map[string]bool{
	"libraries":      true,
	"immutables":     true,
	"cborAuxdata":    true,
	"callProtection": true,
}

var creationReasons = map[string]bool{
	ReasonConstructorArguments: true,
	ReasonLibrary:              true,
	ReasonCborAuxdata:          true,
}

var runtimeReasons = map[string]bool{
	ReasonLibrary:        true,
	ReasonImmutable:      true,
	ReasonCborAuxdata:    true,
	ReasonCallProtection: true,
}

// ValidateCreationValues checks a creation-side values document against the
// closed schema.
func ValidateCreationValues(doc json.RawMessage) error {
	return validateValues(doc, creationValueKeys)
}

// ValidateRuntimeValues checks a runtime-side values document against the
// closed schema.
func ValidateRuntimeValues(doc json.RawMessage) error {
	return validateValues(doc, runtimeValueKeys)
}

// ValidateCreationTransformations checks a creation-side transformations
// document against the closed schema.
func ValidateCreationTransformations(doc json.RawMessage) error {
	return validateTransformations(doc, creationReasons)
}

// ValidateRuntimeTransformations checks a runtime-side transformations
// document against the closed schema.
func ValidateRuntimeTransformations(doc json.RawMessage) error {
	return validateTransformations(doc, runtimeReasons)
}

func validateValues(doc json.RawMessage, allowedKeys map[string]bool) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(doc, &obj); err != nil {
		return fmt.Errorf("%w: values is not an object: %v", ErrInvalidDocument, err)
	}

	for key, raw := range obj {
		if !allowedKeys[key] {
			return fmt.Errorf("%w: unknown values key %q", ErrInvalidDocument, key)
		}
		switch key {
		case "constructorArguments":
			if err := validateHexString(raw, 0); err != nil {
				return fmt.Errorf("%w: constructorArguments: %v", ErrInvalidDocument, err)
			}
		case "callProtection":
			if err := validateHexString(raw, addressLength); err != nil {
				return fmt.Errorf("%w: callProtection: %v", ErrInvalidDocument, err)
			}
		case "libraries":
			if err := validateHexMap(raw, addressLength); err != nil {
				return fmt.Errorf("%w: libraries: %v", ErrInvalidDocument, err)
			}
		case "immutables":
			if err := validateHexMap(raw, immutableLength); err != nil {
				return fmt.Errorf("%w: immutables: %v", ErrInvalidDocument, err)
			}
		case "cborAuxdata":
			if err := validateHexMap(raw, 0); err != nil {
				return fmt.Errorf("%w: cborAuxdata: %v", ErrInvalidDocument, err)
			}
		}
	}
	return nil
}

func validateTransformations(doc json.RawMessage, allowedReasons map[string]bool) error {
	var list []map[string]json.RawMessage
	if err := json.Unmarshal(doc, &list); err != nil {
		return fmt.Errorf("%w: transformations is not an array of objects: %v", ErrInvalidDocument, err)
	}

	for i, obj := range list {
		if err := validateTransformation(obj, allowedReasons); err != nil {
			return fmt.Errorf("transformation %d: %w", i, err)
		}
	}
	return nil
}

func validateTransformation(obj map[string]json.RawMessage, allowedReasons map[string]bool) error {
	reason, err := stringField(obj, "reason")
	if err != nil {
		return err
	}
	if !allowedReasons[reason] {
		return fmt.Errorf("%w: reason %q not allowed", ErrInvalidDocument, reason)
	}

	typ, err := stringField(obj, "type")
	if err != nil {
		return err
	}

	var offset float64
	rawOffset, ok := obj["offset"]
	if !ok {
		return fmt.Errorf("%w: missing offset", ErrInvalidDocument)
	}
	if err := json.Unmarshal(rawOffset, &offset); err != nil || offset < 0 || offset != float64(int64(offset)) {
		return fmt.Errorf("%w: offset must be a non-negative integer", ErrInvalidDocument)
	}

	// id is required for named replace targets and forbidden otherwise.
	_, hasID := obj["id"]
	wantID := reason == ReasonLibrary || reason == ReasonImmutable || reason == ReasonCborAuxdata
	if wantID {
		id, err := stringField(obj, "id")
		if err != nil {
			return err
		}
		if id == "" {
			return fmt.Errorf("%w: empty id", ErrInvalidDocument)
		}
	} else if hasID {
		return fmt.Errorf("%w: reason %q does not take an id", ErrInvalidDocument, reason)
	}

	wantKeys := 3
	if wantID {
		wantKeys = 4
	}
	if len(obj) != wantKeys {
		return fmt.Errorf("%w: unexpected keys in transformation", ErrInvalidDocument)
	}

	wantType := TypeReplace
	if reason == ReasonConstructorArguments {
		wantType = TypeInsert
	}
	if typ != wantType {
		return fmt.Errorf("%w: reason %q requires type %q, got %q", ErrInvalidDocument, reason, wantType, typ)
	}

	if reason == ReasonCallProtection && offset != CallProtectionOffset {
		return fmt.Errorf("%w: callProtection offset must be %d", ErrInvalidDocument, CallProtectionOffset)
	}
	return nil
}

func stringField(obj map[string]json.RawMessage, key string) (string, error) {
	raw, ok := obj[key]
	if !ok {
		return "", fmt.Errorf("%w: missing %s", ErrInvalidDocument, key)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%w: %s is not a string", ErrInvalidDocument, key)
	}
	return s, nil
}

// validateHexString checks a 0x-prefixed hex string. wantLength is in bytes;
// zero means any non-zero length.
func validateHexString(raw json.RawMessage, wantLength int) error {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return errors.New("not a string")
	}
	hexPart, ok := strings.CutPrefix(s, "0x")
	if !ok {
		return errors.New("missing 0x prefix")
	}
	decoded, err := hex.DecodeString(hexPart)
	if err != nil {
		return errors.New("not valid hex")
	}
	if wantLength == 0 {
		if len(decoded) == 0 {
			return errors.New("empty value")
		}
		return nil
	}
	if len(decoded) != wantLength {
		return fmt.Errorf("value must be %d bytes, got %d", wantLength, len(decoded))
	}
	return nil
}

func validateHexMap(raw json.RawMessage, wantLength int) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return errors.New("not an object")
	}
	for id, value := range m {
		if err := validateHexString(value, wantLength); err != nil {
			return fmt.Errorf("id %q: %v", id, err)
		}
	}
	return nil
}
