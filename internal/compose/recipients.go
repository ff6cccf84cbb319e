package compose

import (
	"fmt"
	"strings"

	"github.com/emersion/go-message/mail"
)

// ParseRecipients splits a comma-separated address list as typed in a
// recipient field and returns the bare addresses. Display names are
// accepted and dropped. An empty field yields no recipients.
func ParseRecipients(field string) ([]string, error) {
	field = strings.TrimSpace(strings.Trim(field, ", "))
	if field == "" {
		return nil, nil
	}

	addrs, err := mail.ParseAddressList(field)
	if err != nil {
		return nil, fmt.Errorf("invalid recipient list %q: %w", field, err)
	}

	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.Address)
	}
	return out, nil
}

// ValidateDraft checks that the draft has at least one recipient and that
// every address parses.
func ValidateDraft(to, cc, bcc []string) error {
	if len(to) == 0 {
		return fmt.Errorf("at least one recipient is required")
	}
	for _, list := range [][]string{to, cc, bcc} {
		for _, addr := range list {
			if _, err := mail.ParseAddress(addr); err != nil {
				return fmt.Errorf("invalid recipient address: %s", addr)
			}
		}
	}
	return nil
}
