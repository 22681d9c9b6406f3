package match

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Matcher errors. A non-match is never an error; these indicate malformed
// compiler artifacts.
var (
	// ErrOutOfBounds is returned when an artifact references bytes outside
	// the compiled code.
	ErrOutOfBounds = errors.New("artifact offset out of code bounds")
	// ErrInconsistentOffsets is returned when the deployed code carries
	// different values at offsets that must hold the same library address or
	// immutable value.
	ErrInconsistentOffsets = errors.New("offset values are not consistent")
)

// Match is a positive verdict: the compiled code explains the deployed code.
// MetadataMatch additionally reports that the code's self-describing metadata
// sections were present and needed no transformation.
type Match struct {
	MetadataMatch   bool
	Transformations []Transformation
	Values          Values
}

// VerifyCreationCode checks compiled creation code against on-chain creation
// code. A nil Match with nil error means no match.
func VerifyCreationCode(onChainCode, compiledCode []byte, creationArtifacts *CreationCodeArtifacts, compilationArtifacts *CompilationArtifacts) (*Match, error) {
	b := newMatchBuilder(onChainCode, compiledCode)
	if b == nil {
		return nil, nil
	}
	if err := b.applyCborAuxdataTransformations(creationArtifacts.CborAuxdata); err != nil {
		return nil, err
	}
	if err := b.applyLibraryTransformations(creationArtifacts.LinkReferences); err != nil {
		return nil, err
	}
	if err := b.applyConstructorTransformation(compilationArtifacts.ABI); err != nil {
		return nil, err
	}
	return b.verifyAndBuild(), nil
}

// VerifyRuntimeCode checks compiled runtime code against on-chain runtime
// code. A nil Match with nil error means no match.
func VerifyRuntimeCode(onChainCode, compiledCode []byte, runtimeArtifacts *RuntimeCodeArtifacts) (*Match, error) {
	b := newMatchBuilder(onChainCode, compiledCode)
	if b == nil {
		return nil, nil
	}
	b.applyCallProtectionTransformation()
	if err := b.applyCborAuxdataTransformations(runtimeArtifacts.CborAuxdata); err != nil {
		return nil, err
	}
	if err := b.applyLibraryTransformations(runtimeArtifacts.LinkReferences); err != nil {
		return nil, err
	}
	if err := b.applyImmutableTransformations(runtimeArtifacts.ImmutableReferences); err != nil {
		return nil, err
	}
	return b.verifyAndBuild(), nil
}

// matchBuilder mutates a copy of the compiled code toward the deployed code,
// recording every applied transformation. Transformations are applied in a
// fixed order and iterate artifact ids in sorted order, so matching is
// deterministic.
type matchBuilder struct {
	deployedCode []byte
	compiledCode []byte

	transformations []Transformation
	values          Values

	invalidConstructorArguments  bool
	hasCborAuxdata               bool
	hasCborAuxdataTransformation bool
}

// newMatchBuilder returns nil when the deployed code is shorter than the
// compiled code, which can never match since transformations only replace
// bytes or append constructor arguments.
func newMatchBuilder(deployedCode, compiledCode []byte) *matchBuilder {
	if len(deployedCode) < len(compiledCode) {
		return nil
	}
	return &matchBuilder{
		deployedCode:    deployedCode,
		compiledCode:    append([]byte(nil), compiledCode...),
		transformations: make([]Transformation, 0),
	}
}

func (b *matchBuilder) verifyAndBuild() *Match {
	if b.invalidConstructorArguments || !bytes.Equal(b.deployedCode, b.compiledCode) {
		return nil
	}
	return &Match{
		MetadataMatch:   b.hasCborAuxdata && !b.hasCborAuxdataTransformation,
		Transformations: b.transformations,
		Values:          b.values,
	}
}

func (b *matchBuilder) applyCborAuxdataTransformations(cborAuxdata CborAuxdata) error {
	if len(cborAuxdata) == 0 {
		return nil
	}
	b.hasCborAuxdata = true

	for _, id := range sortedKeys(cborAuxdata) {
		section := cborAuxdata[id]
		start := int(section.Offset)
		end := start + len(section.Value)
		if end > len(b.compiledCode) || start > end {
			return fmt.Errorf("%w: cborAuxdata id=%s", ErrOutOfBounds, id)
		}

		onChainValue := b.deployedCode[start:end]
		if !bytes.Equal(onChainValue, section.Value) {
			b.hasCborAuxdataTransformation = true
			copy(b.compiledCode[start:end], onChainValue)
			b.transformations = append(b.transformations, AuxdataTransformation(section.Offset, id))
			b.values.addCborAuxdata(id, append([]byte(nil), onChainValue...))
		}
	}
	return nil
}

func (b *matchBuilder) applyLibraryTransformations(linkReferences LinkReferences) error {
	for _, file := range sortedKeys(linkReferences) {
		fileReferences := linkReferences[file]
		for _, contract := range sortedKeys(fileReferences) {
			id := file + ":" + contract
			if err := b.replaceAtOffsets(fileReferences[contract], func(offset uint64, value []byte) {
				b.transformations = append(b.transformations, LibraryTransformation(offset, id))
				b.values.addLibrary(id, value)
			}, "library", id); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *matchBuilder) applyImmutableTransformations(immutableReferences ImmutableReferences) error {
	for _, id := range sortedKeys(immutableReferences) {
		if err := b.replaceAtOffsets(immutableReferences[id], func(offset uint64, value []byte) {
			b.transformations = append(b.transformations, ImmutableTransformation(offset, id))
			b.values.addImmutable(id, value)
		}, "immutable", id); err != nil {
			return err
		}
	}
	return nil
}

// replaceAtOffsets copies the deployed bytes over every referenced region.
// All regions of one id must carry the same deployed value; a single library
// or immutable cannot resolve to two different values.
func (b *matchBuilder) replaceAtOffsets(offsets []ByteOffset, record func(offset uint64, value []byte), reason, id string) error {
	var onChainValue []byte
	for _, offset := range offsets {
		start := int(offset.Start)
		end := start + int(offset.Length)
		if end > len(b.compiledCode) || start > end {
			return fmt.Errorf("%w: %s id=%s", ErrOutOfBounds, reason, id)
		}

		offsetValue := b.deployedCode[start:end]
		if onChainValue == nil {
			onChainValue = offsetValue
		} else if !bytes.Equal(onChainValue, offsetValue) {
			return fmt.Errorf("%w: %s id=%s", ErrInconsistentOffsets, reason, id)
		}

		copy(b.compiledCode[start:end], offsetValue)
		record(offset.Start, append([]byte(nil), offsetValue...))
	}
	return nil
}

// applyCallProtectionTransformation handles solc's library call protection:
// deployed library runtime code starts with PUSH20 <own address> where the
// compiled code has PUSH20 followed by twenty zero bytes. The pattern is
// fixed, so the transformation is only applied when the compiled code starts
// exactly that way.
func (b *matchBuilder) applyCallProtectionTransformation() {
	const push20 = 0x73
	const addressLength = 20

	end := CallProtectionOffset + addressLength
	if len(b.compiledCode) < end || b.compiledCode[0] != push20 {
		return
	}
	placeholder := b.compiledCode[CallProtectionOffset:end]
	if !bytes.Equal(placeholder, make([]byte, addressLength)) {
		return
	}

	onChainValue := b.deployedCode[CallProtectionOffset:end]
	if bytes.Equal(onChainValue, placeholder) {
		return
	}

	copy(b.compiledCode[CallProtectionOffset:end], onChainValue)
	b.transformations = append(b.transformations, CallProtectionTransformation())
	b.values.setCallProtection(append([]byte(nil), onChainValue...))
}

// applyConstructorTransformation treats whatever the deployed creation code
// carries beyond the compiled code as constructor arguments. The tail must
// decode against the constructor declared by the ABI; a tail with no
// constructor, or a constructor with no tail, disqualifies the match.
func (b *matchBuilder) applyConstructorTransformation(abiDoc json.RawMessage) error {
	offset := len(b.compiledCode)
	constructorArguments := b.deployedCode[offset:]

	constructor, err := parseConstructor(abiDoc)
	if err != nil {
		return err
	}

	switch {
	case constructor == nil && len(constructorArguments) > 0:
		b.invalidConstructorArguments = true
	case constructor != nil && len(constructorArguments) == 0:
		b.invalidConstructorArguments = true
	case constructor != nil && !constructorDecodes(constructor, constructorArguments):
		b.invalidConstructorArguments = true
	case constructor == nil:
		// No constructor, no tail.
	default:
		b.compiledCode = append(b.compiledCode, constructorArguments...)
		b.transformations = append(b.transformations, ConstructorTransformation(uint64(offset)))
		b.values.setConstructorArguments(append([]byte(nil), constructorArguments...))
	}
	return nil
}

// parseConstructor returns the declared constructor arguments, or nil when
// the ABI declares no constructor.
func parseConstructor(abiDoc json.RawMessage) (abi.Arguments, error) {
	if abiDoc == nil {
		return nil, nil
	}

	// The parsed ABI cannot distinguish "no constructor" from a zero-argument
	// constructor, so presence is read off the raw document.
	var entries []struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(abiDoc, &entries); err != nil {
		return nil, fmt.Errorf("parsing compiled contract abi: %w", err)
	}
	declared := false
	for _, entry := range entries {
		if entry.Type == "constructor" {
			declared = true
			break
		}
	}
	if !declared {
		return nil, nil
	}

	parsed, err := abi.JSON(strings.NewReader(string(abiDoc)))
	if err != nil {
		return nil, fmt.Errorf("parsing compiled contract abi: %w", err)
	}
	if parsed.Constructor.Inputs == nil {
		return abi.Arguments{}, nil
	}
	return parsed.Constructor.Inputs, nil
}

func constructorDecodes(constructor abi.Arguments, arguments []byte) bool {
	if len(constructor) == 0 {
		return len(arguments) == 0
	}
	_, err := constructor.Unpack(arguments)
	return err == nil
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
