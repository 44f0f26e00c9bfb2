package photopost

import (
	"crypto/subtle"
	"net/mail"
	"regexp"
)

// authorize reports whether a webhook request may proceed. The sender
// address, webhook username, and webhook password must all match; no single
// check is sufficient on its own.
func (a *App) authorize(from, user, pass string) bool {
	sender := false
	if addr := bareAddress(from); addr != "" {
		sender = a.senders.MatchString(addr)
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(a.Config.Webhook.User)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(a.Config.Webhook.Pass)) == 1
	return sender && userOK && passOK
}

// bareAddress extracts the plain address from a From value that may carry a
// display name, like "First Last <email@add.rs>". Unparseable input yields "".
func bareAddress(from string) string {
	addr, err := mail.ParseAddress(from)
	if err != nil {
		return ""
	}
	return addr.Address
}

// compileSenders anchors the configured allow-list pattern at the start of
// the address, so it matches as a prefix.
func compileSenders(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile(`\A(?:` + pattern + `)`)
}
