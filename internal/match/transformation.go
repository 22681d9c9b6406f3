package match

// Transformation reasons. The set is closed; the schema validator rejects
// anything else.
const (
	ReasonConstructorArguments = "constructorArguments"
	ReasonLibrary              = "library"
	ReasonImmutable            = "immutable"
	ReasonCborAuxdata          = "cborAuxdata"
	ReasonCallProtection       = "callProtection"
)

// Transformation types.
const (
	TypeInsert  = "insert"
	TypeReplace = "replace"
)

// CallProtectionOffset is where a deployed library embeds its own address.
// Runtime code starts with PUSH20 <address>, so the replaced region begins
// right after the opcode byte. This is a fixed pattern of solc's library
// call protection, not a general rule.
const CallProtectionOffset = 1

// Transformation is one legitimate edit turning compiled code into deployed
// code. Offset counts bytes from the start of the compiled code; for the
// constructor-argument insert it equals the compiled code length. ID names
// the replaced target and is absent for constructorArguments and
// callProtection.
type Transformation struct {
	Reason string `json:"reason"`
	Type   string `json:"type"`
	Offset uint64 `json:"offset"`
	ID     string `json:"id,omitempty"`
}

// ConstructorTransformation records the constructor-argument insert at the
// end of the compiled creation code.
func ConstructorTransformation(offset uint64) Transformation {
	return Transformation{Reason: ReasonConstructorArguments, Type: TypeInsert, Offset: offset}
}

// LibraryTransformation records a linked library address replacement.
func LibraryTransformation(offset uint64, id string) Transformation {
	return Transformation{Reason: ReasonLibrary, Type: TypeReplace, Offset: offset, ID: id}
}

// ImmutableTransformation records an immutable value replacement.
func ImmutableTransformation(offset uint64, id string) Transformation {
	return Transformation{Reason: ReasonImmutable, Type: TypeReplace, Offset: offset, ID: id}
}

// AuxdataTransformation records a metadata section replacement.
func AuxdataTransformation(offset uint64, id string) Transformation {
	return Transformation{Reason: ReasonCborAuxdata, Type: TypeReplace, Offset: offset, ID: id}
}

// CallProtectionTransformation records the library call-protection address
// replacement.
func CallProtectionTransformation() Transformation {
	return Transformation{Reason: ReasonCallProtection, Type: TypeReplace, Offset: CallProtectionOffset}
}
