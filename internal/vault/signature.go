package vault

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// RecoverSigner recovers the address that produced signature over digest.
//
// It is a pure predicate used to gate authorization, so it never errors:
// any malformed input yields the zero address, which callers treat as
// "verification failed". Signatures must be 65 bytes (r||s||v); both legacy
// {0,1} and canonical {27,28} recovery ids are accepted.
func RecoverSigner(digest common.Hash, signature []byte) common.Address {
	if len(signature) != crypto.SignatureLength {
		return common.Address{}
	}
	v := signature[64]
	if v < 27 {
		v += 27
	}
	if v != 27 && v != 28 {
		return common.Address{}
	}
	// crypto.SigToPub wants the recovery id in {0,1} at the tail.
	normalized := make([]byte, crypto.SignatureLength)
	copy(normalized, signature)
	normalized[64] = v - 27
	pub, err := crypto.SigToPub(digest.Bytes(), normalized)
	if err != nil {
		return common.Address{}
	}
	return crypto.PubkeyToAddress(*pub)
}
