package ids

import (
	"crypto/rand"
	"math/big"
)

// Invite code alphabet. 0/O and 1/I stay in: codes are uppercased on
// redeem, not respelled, and the pool is short-lived anyway.
const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const InviteCodeLength = 6

// GenerateInviteCode returns a random 6-character uppercase alphanumeric
// code. Uniqueness is probabilistic only; redemption checks used/expiry
// state, not global uniqueness.
func GenerateInviteCode() (string, error) {
	max := big.NewInt(int64(len(codeAlphabet)))
	buf := make([]byte, InviteCodeLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}
