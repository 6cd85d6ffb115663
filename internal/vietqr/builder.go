// Package vietqr builds bank-transfer QR links and decodes the bank
// webhook that reports incoming transfers.
package vietqr

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	DefaultBaseURL  = "https://img.vietqr.io/image"
	DefaultTemplate = "compact2"
)

// Builder renders VietQR image links for one receiving account.
type Builder struct {
	BaseURL     string
	BankID      string
	AccountNo   string
	AccountName string
	Template    string
}

// ImageURL returns the QR image link for amount with description as the
// transfer note. The description is URL-escaped.
func (b Builder) ImageURL(amount int64, description string) string {
	base := strings.TrimRight(b.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	template := b.Template
	if template == "" {
		template = DefaultTemplate
	}

	q := url.Values{}
	q.Set("amount", strconv.FormatInt(amount, 10))
	q.Set("addInfo", description)
	if b.AccountName != "" {
		q.Set("accountName", b.AccountName)
	}

	return fmt.Sprintf("%s/%s-%s-%s.png?%s",
		base,
		url.PathEscape(b.BankID),
		url.PathEscape(b.AccountNo),
		url.PathEscape(template),
		q.Encode(),
	)
}

// Configured reports whether the receiving account is set.
func (b Builder) Configured() bool {
	return b.BankID != "" && b.AccountNo != ""
}
