package zalopay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sign returns the hex HMAC-SHA256 of data under key.
func Sign(key, data string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyMAC compares the expected MAC of data with got in constant time.
func VerifyMAC(key, data, got string) bool {
	if got == "" {
		return false
	}
	want := Sign(key, data)
	return hmac.Equal([]byte(want), []byte(strings.ToLower(strings.TrimSpace(got))))
}

func joinFields(fields ...string) string {
	return strings.Join(fields, "|")
}
