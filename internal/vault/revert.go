package vault

import "math/big"

// SilentRevertMessage is returned when a failed call carries no decodable
// Error(string) payload.
const SilentRevertMessage = "Transaction reverted silently"

// Minimum length of a standard Error(string) encoding: 4-byte selector,
// 32-byte string offset, 32-byte string length.
const minRevertLen = 68

// DecodeRevert extracts a human-readable reason from a failed call's raw
// return data. Anything shorter than a standard error-string encoding, or
// malformed beyond the length check, degrades to SilentRevertMessage; the
// function never fails.
func DecodeRevert(ret []byte) string {
	if len(ret) < minRevertLen {
		return SilentRevertMessage
	}
	body := ret[4:]
	bodyLen := big.NewInt(int64(len(body)))
	// Bounds checks stay in big.Int space: offset and length are attacker
	// chosen 256-bit words, and an int64 sum near MaxInt64 wraps negative.
	offset := new(big.Int).SetBytes(body[:32])
	strStart := new(big.Int).Add(offset, big.NewInt(32))
	if strStart.Cmp(bodyLen) > 0 {
		return SilentRevertMessage
	}
	start := offset.Int64()
	length := new(big.Int).SetBytes(body[start : start+32])
	if new(big.Int).Add(strStart, length).Cmp(bodyLen) > 0 {
		return SilentRevertMessage
	}
	return string(body[start+32 : start+32+length.Int64()])
}
