package match

import "github.com/ethereum/go-ethereum/common/hexutil"

// Values holds the concrete bytes resolved for each transformation,
// sufficient to regenerate deployed code from compiled code without
// re-running the matcher. Keys map to 0x-prefixed hex strings; library and
// call-protection values are exactly 20 bytes, immutables 32 bytes.
type Values struct {
	ConstructorArguments *hexutil.Bytes           `json:"constructorArguments,omitempty"`
	Libraries            map[string]hexutil.Bytes `json:"libraries,omitempty"`
	Immutables           map[string]hexutil.Bytes `json:"immutables,omitempty"`
	CborAuxdata          map[string]hexutil.Bytes `json:"cborAuxdata,omitempty"`
	CallProtection       *hexutil.Bytes           `json:"callProtection,omitempty"`
}

func (v *Values) setConstructorArguments(args []byte) {
	b := hexutil.Bytes(args)
	v.ConstructorArguments = &b
}

func (v *Values) addLibrary(id string, value []byte) {
	if v.Libraries == nil {
		v.Libraries = make(map[string]hexutil.Bytes)
	}
	v.Libraries[id] = value
}

func (v *Values) addImmutable(id string, value []byte) {
	if v.Immutables == nil {
		v.Immutables = make(map[string]hexutil.Bytes)
	}
	v.Immutables[id] = value
}

func (v *Values) addCborAuxdata(id string, value []byte) {
	if v.CborAuxdata == nil {
		v.CborAuxdata = make(map[string]hexutil.Bytes)
	}
	v.CborAuxdata[id] = value
}

func (v *Values) setCallProtection(address []byte) {
	b := hexutil.Bytes(address)
	v.CallProtection = &b
}
