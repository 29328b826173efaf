// Package script classifies consensus scripts into standard templates and
// builds canonical P2PKH/P2SH scripts, plus base58check address encoding.
package script

import (
	"crypto/sha256"

	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // hash160 needs ripemd160; no stdlib equivalent
)

// Opcodes used by the recognized script templates.
const (
	opDup            = 0x76
	opEqual          = 0x87
	opEqualVerify    = 0x88
	opHash160        = 0xa9
	opCheckSig       = 0xac
	opCheckMultisig  = 0xae
	opReturn         = 0x6a
	op1              = 0x51
	op16             = 0x60
	pushData20       = 0x14
	pushDataCompress = 0x21 // compressed pubkey push (33 bytes)
	pushDataUncomp   = 0x41 // uncompressed pubkey push (65 bytes)
)

// Class identifies a recognized (or unrecognized) script template.
type Class int

const (
	ClassCustom Class = iota
	ClassP2PKH
	ClassP2PK
	ClassP2SH
	ClassMultisig
	ClassNullData
)

func (c Class) String() string {
	switch c {
	case ClassP2PKH:
		return "p2pkh"
	case ClassP2PK:
		return "p2pk"
	case ClassP2SH:
		return "p2sh"
	case ClassMultisig:
		return "multisig"
	case ClassNullData:
		return "nulldata"
	default:
		return "custom"
	}
}

// Hash160 computes ripemd160(sha256(b)), the digest used by both P2PKH and
// P2SH scripts.
func Hash160(b []byte) [20]byte {
	sha := sha256.Sum256(b)
	h := ripemd160.New()
	h.Write(sha[:])
	var out [20]byte
	copy(out[:], h.Sum(nil))
	return out
}

// NewP2PKHScript builds OP_DUP OP_HASH160 <20> OP_EQUALVERIFY OP_CHECKSIG.
func NewP2PKHScript(hash [20]byte) []byte {
	s := make([]byte, 0, 25)
	s = append(s, opDup, opHash160, pushData20)
	s = append(s, hash[:]...)
	s = append(s, opEqualVerify, opCheckSig)
	return s
}

// NewP2SHScript builds OP_HASH160 <20> OP_EQUAL.
func NewP2SHScript(hash [20]byte) []byte {
	s := make([]byte, 0, 23)
	s = append(s, opHash160, pushData20)
	s = append(s, hash[:]...)
	s = append(s, opEqual)
	return s
}

// Classify recognizes the standard script templates described in the
// address/script component. Only P2PKH and P2SH yield a non-nil hash; P2PK
// outputs are recognized but intentionally carry no address, matching the
// per-address index's contract.
func Classify(s []byte) (Class, *[20]byte) {
	if isP2PKH(s) {
		var h [20]byte
		copy(h[:], s[3:23])
		return ClassP2PKH, &h
	}
	if isP2SH(s) {
		var h [20]byte
		copy(h[:], s[2:22])
		return ClassP2SH, &h
	}
	if isP2PK(s) {
		return ClassP2PK, nil
	}
	if isNullData(s) {
		return ClassNullData, nil
	}
	if isMultisig(s) {
		return ClassMultisig, nil
	}
	return ClassCustom, nil
}

func isP2PKH(s []byte) bool {
	return len(s) == 25 &&
		s[0] == opDup && s[1] == opHash160 && s[2] == pushData20 &&
		s[23] == opEqualVerify && s[24] == opCheckSig
}

func isP2SH(s []byte) bool {
	return len(s) == 23 &&
		s[0] == opHash160 && s[1] == pushData20 && s[22] == opEqual
}

func isP2PK(s []byte) bool {
	if len(s) < 2 {
		return false
	}
	last := s[len(s)-1]
	if last != opCheckSig {
		return false
	}
	switch s[0] {
	case pushDataCompress:
		return len(s) == 1+33+1
	case pushDataUncomp:
		return len(s) == 1+65+1
	}
	return false
}

func isNullData(s []byte) bool {
	return len(s) >= 1 && s[0] == opReturn
}

// isMultisig recognizes OP_m <pk>* OP_n OP_CHECKMULTISIG with 1<=m,n<=16 and
// pubkeys of length 33 or 65.
func isMultisig(s []byte) bool {
	if len(s) < 3 {
		return false
	}
	if s[len(s)-1] != opCheckMultisig {
		return false
	}
	m := s[0]
	if m < op1 || m > op16 {
		return false
	}
	nOpcode := s[len(s)-2]
	if nOpcode < op1 || nOpcode > op16 {
		return false
	}
	n := int(nOpcode) - op1 + 1
	mCount := int(m) - op1 + 1
	if mCount > n {
		return false
	}

	pos := 1
	end := len(s) - 2
	count := 0
	for pos < end {
		pushLen := int(s[pos])
		if pushLen != 33 && pushLen != 65 {
			return false
		}
		pos++
		if pos+pushLen > end {
			return false
		}
		pos += pushLen
		count++
	}
	return pos == end && count == n
}
