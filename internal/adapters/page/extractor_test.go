package page

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const loginPage = `<!DOCTYPE html>
<html>
<head>
  <title>  HDFC   NetBanking </title>
  <style>body { color: red; }</style>
  <script>var otp = "ignored";</script>
</head>
<body>
  <h1>Welcome to NetBanking</h1>
  <p>Enter your   customer ID and password.</p>
  <form action="https://collect.example.net/submit" method="post">
    <label for="cust">Customer ID</label>
    <input id="cust" name="customer_id" type="text" autocomplete="username">
    <label>Password <input name="pwd" type="password"></label>
    <input name="otp" placeholder="Enter OTP" maxlength="6" aria-label="One time password">
    <input type="hidden" name="csrf" value="x">
    <input type="submit" value="Login">
  </form>
  <a href="https://hdfcbank.com/help">Help</a>
  <a href="https://hdfcbank.com/help">Help again</a>
  <a href="#top">Top</a>
  <a href="javascript:void(0)">Nothing</a>
</body>
</html>`

func TestExtractor_Extract(t *testing.T) {
	pc, err := NewExtractor().Extract("http://hdfc8ank.com/login", loginPage)
	require.NoError(t, err)

	assert.Equal(t, "http://hdfc8ank.com/login", pc.URL)
	assert.Equal(t, "hdfc8ank.com", pc.Domain)
	assert.Equal(t, "http:", pc.Protocol)
	assert.Equal(t, "HDFC NetBanking", pc.Title)

	assert.Contains(t, pc.Text, "Welcome to NetBanking")
	assert.Contains(t, pc.Text, "Enter your customer ID and password.")
	assert.NotContains(t, pc.Text, "ignored")
	assert.NotContains(t, pc.Text, "color: red")

	require.Len(t, pc.Fields, 3)

	assert.Equal(t, "text", pc.Fields[0].Type)
	assert.Equal(t, "customer_id", pc.Fields[0].Name)
	assert.Equal(t, "Customer ID", pc.Fields[0].Label)
	assert.Equal(t, "username", pc.Fields[0].Autocomplete)
	assert.Equal(t, "https://collect.example.net/submit", pc.Fields[0].FormAction)

	assert.Equal(t, "password", pc.Fields[1].Type)
	assert.Equal(t, "Password", pc.Fields[1].Label)

	assert.Equal(t, "text", pc.Fields[2].Type)
	assert.Equal(t, "otp", pc.Fields[2].Name)
	assert.Equal(t, "Enter OTP", pc.Fields[2].Placeholder)
	assert.Equal(t, "One time password", pc.Fields[2].Label)
	assert.Equal(t, 6, pc.Fields[2].MaxLength)

	assert.Equal(t, []string{"https://hdfcbank.com/help"}, pc.Links)
}

func TestExtractor_EmptyDocument(t *testing.T) {
	for _, html := range []string{"", "   \n\t"} {
		_, err := NewExtractor().Extract("https://example.com", html)
		assert.ErrorIs(t, err, ErrEmptyDocument)
	}
}

func TestExtractor_TextIsCapped(t *testing.T) {
	html := "<html><body><p>" + strings.Repeat("a", MaxTextLength+500) + "</p></body></html>"

	pc, err := NewExtractor().Extract("https://example.com", html)
	require.NoError(t, err)
	assert.Len(t, pc.Text, MaxTextLength)
}

func TestExtractor_TextCapKeepsRunesWhole(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "two-byte runes", content: strings.Repeat("é", MaxTextLength)},
		{name: "three-byte runes", content: strings.Repeat("₹", MaxTextLength)},
		{name: "four-byte runes after one ASCII byte", content: "a" + strings.Repeat("💳", MaxTextLength/2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pc, err := NewExtractor().Extract("https://example.com", "<html><body><p>"+tt.content+"</p></body></html>")
			require.NoError(t, err)
			assert.True(t, utf8.ValidString(pc.Text))
			assert.LessOrEqual(t, len(pc.Text), MaxTextLength)
			assert.Greater(t, len(pc.Text), MaxTextLength-utf8.UTFMax)
		})
	}
}

func TestTruncateUTF8(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{in: "hello", n: 10, want: "hello"},
		{in: "hello", n: 3, want: "hel"},
		{in: "aé", n: 2, want: "a"},
		{in: "₹₹", n: 4, want: "₹"},
		{in: "₹", n: 2, want: ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, truncateUTF8(tt.in, tt.n), "%q/%d", tt.in, tt.n)
	}
}

func TestLocate(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		domain   string
		protocol string
	}{
		{"https with port", "https://NetBanking.HDFCBank.com:443/login", "netbanking.hdfcbank.com", "https:"},
		{"plain http", "http://paytm-verify.tk/", "paytm-verify.tk", "http:"},
		{"no scheme", "example.com/path", "", ""},
		{"malformed", "http://[::1", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pc := Locate(tt.url)
			assert.Equal(t, tt.url, pc.URL)
			assert.Equal(t, tt.domain, pc.Domain)
			assert.Equal(t, tt.protocol, pc.Protocol)
		})
	}
}
