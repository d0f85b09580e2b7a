// Package id provides unique identifier generation for analyses.
package id

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Generate creates a new unique analysis ID.
// Format: an-<timestamp>-<random>
// Example: an-1701432000-a1b2c3d4e5f6
func Generate() string {
	timestamp := time.Now().Unix()
	random := make([]byte, 6)
	if _, err := rand.Read(random); err != nil {
		// Fallback to nanosecond timestamp if crypto/rand fails
		return fmt.Sprintf("an-%d", time.Now().UnixNano())
	}
	return fmt.Sprintf("an-%d-%s", timestamp, hex.EncodeToString(random))
}
