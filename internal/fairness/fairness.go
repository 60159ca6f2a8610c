// Package fairness implements the commit-reveal provably-fair wheel draw.
package fairness

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// WheelSlots is the number of positions on the wheel (0-36 inclusive).
const WheelSlots = 37

// Iterations is the number of chained sha256 passes the draw applies. This is
// part of the external verification contract and must never change.
const Iterations = 5

// GenerateSeed creates a cryptographically secure 32-byte seed, hex encoded.
func GenerateSeed() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// HashCommitment returns the sha256 hex digest of seed, published before the
// seed itself so a round's outcome can later be verified against it.
func HashCommitment(seed string) string {
	h := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(h[:])
}

// Draw computes the outcome index for a round from the revealed server seed,
// the client seed, and the nonce (the round number). It iterates sha256 five
// times over the evolving hex digest and interprets the first 8 hex
// characters of the final digest as an unsigned 32-bit integer, mod 37.
//
// Any deviation from this exact recipe breaks third-party verifiers
// reproducing the draw from the revealed seed.
func Draw(serverSeedHex, clientSeed string, nonce int) (index int, finalDigest string) {
	digest := fmt.Sprintf("%s:%s:%d", serverSeedHex, clientSeed, nonce)
	for i := 0; i < Iterations; i++ {
		sum := sha256.Sum256([]byte(digest))
		digest = hex.EncodeToString(sum[:])
	}

	raw, err := hex.DecodeString(digest[:8])
	if err != nil {
		// digest is always a valid hex string produced by hex.EncodeToString above.
		panic(fmt.Sprintf("fairness: corrupt digest: %v", err))
	}
	n := binary.BigEndian.Uint32(raw)

	return int(n % WheelSlots), digest
}

// Verify recomputes a round's outcome from its revealed inputs and checks it
// against both the published commitment and the recorded outcome index.
func Verify(commitment, serverSeedHex, clientSeed string, nonce, outcomeIndex int) bool {
	if HashCommitment(serverSeedHex) != commitment {
		return false
	}
	index, _ := Draw(serverSeedHex, clientSeed, nonce)
	return index == outcomeIndex
}
