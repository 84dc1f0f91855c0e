// Package xcrypto provides the HMAC, base64, hex, and UUID helpers used by
// the system-metrics device_id computation (§6) and by the reporter's
// event_id generation (§4.8).
/*
 * Copyright (c) 2023, NVIDIA CORPORATION. All rights reserved.
 */
package xcrypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"hash"

	"github.com/google/uuid"
)

const HMACSize = sha256.Size // 32

// GenerateHMAC computes HMAC-SHA256(key, input) in one shot.
func GenerateHMAC(key, input []byte) [HMACSize]byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(input)
	var out [HMACSize]byte
	copy(out[:], mac.Sum(nil))
	return out
}

// HMACCtx is the streaming counterpart of GenerateHMAC, for callers that
// assemble the signed buffer across multiple writes.
type HMACCtx struct {
	h hash.Hash
}

func NewHMACCtx(key []byte) *HMACCtx {
	return &HMACCtx{h: hmac.New(sha256.New, key)}
}

func (c *HMACCtx) Update(input []byte) { c.h.Write(input) }

func (c *HMACCtx) Finish() [HMACSize]byte {
	var out [HMACSize]byte
	copy(out[:], c.h.Sum(nil))
	return out
}

func EncodeBase64(input []byte) string { return base64.StdEncoding.EncodeToString(input) }

func DecodeBase64(input string) ([]byte, error) { return base64.StdEncoding.DecodeString(input) }

// EncodeHex renders input as lowercase ASCII hex, matching the device_id
// field format expected by system-metrics (§6).
func EncodeHex(input []byte) string { return hex.EncodeToString(input) }

// deviceSignatureKeyB64 is the base64-encoded HMAC key device_id is signed
// with; same constant value as upstream's _DEVICE_ID_KEY.
const deviceSignatureKeyB64 = "Dje2/XcY9UQTheBdIV5W1o47WcWLLPBf9pzGk6abKT3qLZYhdiocVxbGjQz8WDpeqqP4iwzCi7yuXKB4Fmkw8w=="

// ComputeDeviceIDHex returns the hex-encoded HMAC-SHA256 of buf, keyed by
// the fixed device signature key - the exact transform system-metrics'
// device_id field is required to hold (§6).
func ComputeDeviceIDHex(buf []byte) (string, error) {
	key, err := DecodeBase64(deviceSignatureKeyB64)
	if err != nil {
		return "", err
	}
	sum := GenerateHMAC(key, buf)
	return EncodeHex(sum[:]), nil
}

// NewUUID returns a fresh random (v4) UUID in canonical
// xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx lowercase-hex form, used by the
// reporter for event_id (§4.8) and available anywhere else a UUID is
// needed.
func NewUUID() string { return uuid.NewString() }

// NewUUIDCompact is NewUUID with the dashes stripped, the 32 lowercase-hex
// character form the reporter embeds as event_id in its event payload.
func NewUUIDCompact() string {
	id := uuid.New()
	b := id[:]
	return hex.EncodeToString(b)
}
