package cos

import (
	"crypto/rand"
	"unsafe"
)

// UnsafeB casts a string to a []byte without copying. The result must not be
// mutated and must not outlive s.
func UnsafeB(s string) []byte {
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

// UnsafeS casts a []byte to a string without copying. The caller must not
// mutate b afterwards.
func UnsafeS(b []byte) string {
	return unsafe.String(unsafe.SliceData(b), len(b))
}

const randABC = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// CryptoRandS returns a random alphanumeric string of length n, drawn from a
// crypto/rand source - used wherever a collision-resistant identifier is
// needed but a full UUID (cmn/xcrypto) would be overkill.
func CryptoRandS(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	out := make([]byte, n)
	for i, c := range b {
		out[i] = randABC[int(c)%len(randABC)]
	}
	return UnsafeS(out)
}
