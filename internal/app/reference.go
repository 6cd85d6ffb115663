package app

import (
	"regexp"

	"github.com/datkrb/resfood-payments/internal/domain"
)

// ReferenceDelimiter precedes the order key in payment descriptions.
const ReferenceDelimiter = "#"

var orderReferencePattern = regexp.MustCompile(ReferenceDelimiter + `([A-Za-z0-9_-]+)`)

// ExtractOrderKey returns the first delimiter-prefixed order key in content.
func ExtractOrderKey(content string) (string, error) {
	m := orderReferencePattern.FindStringSubmatch(content)
	if m == nil || !ValidOrderKey(m[1]) {
		return "", domain.ErrMalformedReference
	}
	return m[1], nil
}

// Reference renders the description token for an order key.
func Reference(prefix, orderKey string) string {
	if prefix == "" {
		return ReferenceDelimiter + orderKey
	}
	return prefix + " " + ReferenceDelimiter + orderKey
}
