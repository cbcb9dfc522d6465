// Package probe answers code-presence questions about addresses by running
// small fixed programs on the node through eth_call, instead of downloading
// contract code and measuring it locally.
package probe

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// codeProbe is creation code that reads the ABI-encoded address appended to
// it and returns the single byte ISZERO(EXTCODESIZE(address)).
//
//	PUSH1 0x20 PUSH1 0x11 PUSH0 CODECOPY      copy the 32-byte argument to mem[0]
//	PUSH0 MLOAD EXTCODESIZE ISZERO
//	PUSH0 MSTORE PUSH1 1 PUSH1 0x1f RETURN    return the last byte of the word
var codeProbe = hexutil.MustDecode("0x602060115f395f513b155f526001601ff3")

// batchCodeProbe is creation code that walks the 20-byte addresses packed
// after it and returns ceil(n/8) bytes with bit i, most significant first,
// set when address i has code.
var batchCodeProbe = hexutil.MustDecode("0x604e3803601481046008600782010491604e83395f5b818110601f57825ff35b8060146001920284015160601c3b6036575b016015565b6008810482600883066007031b81515f1a179053603156")

// MaxBatchSize bounds the addresses sent in one batch call so that the
// creation code, lead address included, stays under the 49152-byte initcode
// limit.
const MaxBatchSize = 1999

// leadAddress opens every batch. It is the ecrecover precompile, which never
// has code, so the first reply bit is always 0 and the reply cannot start
// with the 0xEF byte that nodes reject as creation output (EIP-3541).
var leadAddress = common.BytesToAddress([]byte{0x01})

// encodeCodeProbe appends the left-padded address word to codeProbe.
func encodeCodeProbe(addr common.Address) []byte {
	data := make([]byte, 0, len(codeProbe)+common.HashLength)
	data = append(data, codeProbe...)
	data = append(data, common.BytesToHash(addr.Bytes()).Bytes()...)
	return data
}

// encodeBatchCodeProbe appends leadAddress and the packed addresses to
// batchCodeProbe.
func encodeBatchCodeProbe(addrs []common.Address) []byte {
	data := make([]byte, 0, len(batchCodeProbe)+(len(addrs)+1)*common.AddressLength)
	data = append(data, batchCodeProbe...)
	data = append(data, leadAddress.Bytes()...)
	for _, a := range addrs {
		data = append(data, a.Bytes()...)
	}
	return data
}
