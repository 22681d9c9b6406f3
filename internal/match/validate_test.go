package match

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
)

func TestValidateCreationValues(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{"empty", `{}`, false},
		{"constructor arguments", `{"constructorArguments":"0x1234"}`, false},
		{"libraries", `{"libraries":{"a.sol:A":"0x7d53f102f4d4aa014db4e10d6deec2009b3cda6b"}}`, false},
		{"auxdata", `{"cborAuxdata":{"1":"0xa264"}}`, false},
		{"unknown key", `{"secret":"0x00"}`, true},
		{"immutables not allowed on creation", `{"immutables":{"7":"0x00"}}`, true},
		{"callProtection not allowed on creation", `{"callProtection":"0x7d53f102f4d4aa014db4e10d6deec2009b3cda6b"}`, true},
		{"library address wrong length", `{"libraries":{"a.sol:A":"0x1234"}}`, true},
		{"missing hex prefix", `{"constructorArguments":"1234"}`, true},
		{"not hex", `{"constructorArguments":"0xzz"}`, true},
		{"not an object", `[]`, true},
		{"wrong value type", `{"constructorArguments":42}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCreationValues(json.RawMessage(tt.doc))
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCreationValues(%s) error = %v, wantErr %v", tt.doc, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidDocument) {
				t.Errorf("error %v does not wrap ErrInvalidDocument", err)
			}
		})
	}
}

func TestValidateRuntimeValues(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{"empty", `{}`, false},
		{"immutables", `{"immutables":{"7":"0x0000000000000000000000000000000000000000000000000000000000000064"}}`, false},
		{"callProtection", `{"callProtection":"0x7d53f102f4d4aa014db4e10d6deec2009b3cda6b"}`, false},
		{"constructor arguments not allowed on runtime", `{"constructorArguments":"0x1234"}`, true},
		{"immutable wrong length", `{"immutables":{"7":"0x64"}}`, true},
		{"callProtection wrong length", `{"callProtection":"0x1234"}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRuntimeValues(json.RawMessage(tt.doc))
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRuntimeValues(%s) error = %v, wantErr %v", tt.doc, err, tt.wantErr)
			}
		})
	}
}

func TestValidateTransformations(t *testing.T) {
	tests := []struct {
		name    string
		side    func(json.RawMessage) error
		doc     string
		wantErr bool
	}{
		{"empty array", ValidateCreationTransformations, `[]`, false},
		{"constructor insert", ValidateCreationTransformations, `[{"reason":"constructorArguments","type":"insert","offset":489}]`, false},
		{"library replace", ValidateCreationTransformations, `[{"reason":"library","type":"replace","offset":217,"id":"a.sol:A"}]`, false},
		{"auxdata replace", ValidateRuntimeTransformations, `[{"reason":"cborAuxdata","type":"replace","offset":1639,"id":"1"}]`, false},
		{"immutable replace", ValidateRuntimeTransformations, `[{"reason":"immutable","type":"replace","offset":176,"id":"7"}]`, false},
		{"callProtection replace", ValidateRuntimeTransformations, `[{"reason":"callProtection","type":"replace","offset":1}]`, false},
		{"constructor on runtime side", ValidateRuntimeTransformations, `[{"reason":"constructorArguments","type":"insert","offset":1}]`, true},
		{"immutable on creation side", ValidateCreationTransformations, `[{"reason":"immutable","type":"replace","offset":176,"id":"7"}]`, true},
		{"constructor must insert", ValidateCreationTransformations, `[{"reason":"constructorArguments","type":"replace","offset":489}]`, true},
		{"library must replace", ValidateCreationTransformations, `[{"reason":"library","type":"insert","offset":217,"id":"a.sol:A"}]`, true},
		{"library missing id", ValidateCreationTransformations, `[{"reason":"library","type":"replace","offset":217}]`, true},
		{"library empty id", ValidateCreationTransformations, `[{"reason":"library","type":"replace","offset":217,"id":""}]`, true},
		{"constructor with id", ValidateCreationTransformations, `[{"reason":"constructorArguments","type":"insert","offset":489,"id":"x"}]`, true},
		{"callProtection wrong offset", ValidateRuntimeTransformations, `[{"reason":"callProtection","type":"replace","offset":2}]`, true},
		{"negative offset", ValidateCreationTransformations, `[{"reason":"constructorArguments","type":"insert","offset":-1}]`, true},
		{"fractional offset", ValidateCreationTransformations, `[{"reason":"constructorArguments","type":"insert","offset":1.5}]`, true},
		{"missing reason", ValidateCreationTransformations, `[{"type":"insert","offset":1}]`, true},
		{"unknown reason", ValidateCreationTransformations, `[{"reason":"patch","type":"replace","offset":1}]`, true},
		{"extra key", ValidateCreationTransformations, `[{"reason":"constructorArguments","type":"insert","offset":489,"note":"x"}]`, true},
		{"not an array", ValidateCreationTransformations, `{}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.side(json.RawMessage(tt.doc))
			if (err != nil) != tt.wantErr {
				t.Errorf("validate(%s) error = %v, wantErr %v", tt.doc, err, tt.wantErr)
			}
		})
	}
}

func TestValidateMatcherOutput(t *testing.T) {
	// The matcher's own output always validates.
	compiled := buildCode([]byte{0x73}, make([]byte, 24))
	deployed := buildCode([]byte{0x73}, bytes.Repeat([]byte{0xab}, 20), make([]byte, 4))

	m, err := VerifyRuntimeCode(deployed, compiled, &RuntimeCodeArtifacts{})
	if err != nil {
		t.Fatal(err)
	}
	if m == nil {
		t.Fatal("want match")
	}

	valuesDoc, err := json.Marshal(&m.Values)
	if err != nil {
		t.Fatal(err)
	}
	if err := ValidateRuntimeValues(valuesDoc); err != nil {
		t.Errorf("matcher values failed validation: %v", err)
	}

	transformationsDoc, err := json.Marshal(m.Transformations)
	if err != nil {
		t.Fatal(err)
	}
	if err := ValidateRuntimeTransformations(transformationsDoc); err != nil {
		t.Errorf("matcher transformations failed validation: %v", err)
	}
}
