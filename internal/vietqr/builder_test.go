package vietqr

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_ImageURL(t *testing.T) {
	t.Parallel()

	b := Builder{
		BankID:      "MB",
		AccountNo:   "0123456789",
		AccountName: "RESFOOD",
		Template:    "compact",
	}

	raw := b.ImageURL(50000, "Thanh toan don hang #o1")

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "img.vietqr.io", u.Host)
	assert.Equal(t, "/image/MB-0123456789-compact.png", u.Path)
	assert.Equal(t, "50000", u.Query().Get("amount"))
	assert.Equal(t, "Thanh toan don hang #o1", u.Query().Get("addInfo"))
	assert.Equal(t, "RESFOOD", u.Query().Get("accountName"))
	assert.NotContains(t, u.RawQuery, "#", "delimiter must be escaped")
	assert.NotContains(t, u.RawQuery, " ")
}

func TestBuilder_Defaults(t *testing.T) {
	t.Parallel()

	raw := Builder{BankID: "VCB", AccountNo: "1"}.ImageURL(1, "x")

	assert.True(t, strings.HasPrefix(raw, DefaultBaseURL+"/VCB-1-"+DefaultTemplate+".png?"), raw)
	assert.NotContains(t, raw, "accountName")
	assert.True(t, Builder{BankID: "VCB", AccountNo: "1"}.Configured())
	assert.False(t, Builder{BankID: "VCB"}.Configured())
}
