package application

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// LogicalSessionKey derives a stable session key from the workspace root
// and a window fingerprint, so repeated invocations from the same place
// land on the same affinity entry.
func LogicalSessionKey(workspaceRoot, windowFingerprint string) string {
	raw := strings.TrimSpace(workspaceRoot) + "|" + strings.TrimSpace(windowFingerprint)
	hash := sha1.Sum([]byte(raw))
	return hex.EncodeToString(hash[:])
}
