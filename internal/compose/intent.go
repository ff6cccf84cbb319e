// Package compose prepares the prefill handed to the compose surface for
// new messages, replies and forwards.
package compose

import (
	"strings"

	"github.com/nhle/webmail/internal/model"
)

// Subject prefixes added to replies and forwards.
const (
	ReplyPrefix   = "Re:"
	ForwardPrefix = "Fwd:"
)

// PrefixSubject returns subject with prefix prepended, unless subject
// already starts with prefix. The check is case-sensitive.
func PrefixSubject(prefix, subject string) string {
	if strings.HasPrefix(subject, prefix) {
		return subject
	}
	return prefix + " " + subject
}

// NewIntent returns the prefill for a blank message.
func NewIntent() model.DraftIntent {
	return model.DraftIntent{Mode: model.ComposeNew}
}

// ReplyIntent returns the prefill for answering the sender of e.
func ReplyIntent(e model.Email) model.DraftIntent {
	intent := replyBase(e)
	intent.Mode = model.ComposeReply
	intent.To = []string{e.From}
	return intent
}

// ReplyAllIntent returns the prefill for answering the sender and every
// other recipient of e except self.
func ReplyAllIntent(e model.Email, self string) model.DraftIntent {
	intent := replyBase(e)
	intent.Mode = model.ComposeReplyAll
	intent.To = ReplyAllRecipients(e, self)
	return intent
}

// ForwardIntent returns the prefill for forwarding e. Recipients are left
// empty and the body carries the forwarded message.
func ForwardIntent(e model.Email) model.DraftIntent {
	return model.DraftIntent{
		Mode:              model.ComposeForward,
		Subject:           PrefixSubject(ForwardPrefix, e.Subject),
		Body:              ForwardBody(e),
		InReplyToID:       e.ID(),
		OriginalSender:    e.Sender(),
		OriginalTimestamp: e.SentAt,
	}
}

func replyBase(e model.Email) model.DraftIntent {
	return model.DraftIntent{
		Subject:           PrefixSubject(ReplyPrefix, e.Subject),
		Body:              QuoteBody(e),
		InReplyToID:       e.ID(),
		ThreadID:          e.ThreadID,
		OriginalSender:    e.Sender(),
		OriginalTimestamp: e.SentAt,
	}
}

// ReplyAllRecipients returns the sender of e followed by its To and Cc
// addresses, without duplicates and without self. Addresses compare
// case-insensitively.
func ReplyAllRecipients(e model.Email, self string) []string {
	seen := map[string]bool{}
	if self != "" {
		seen[strings.ToLower(self)] = true
	}

	var out []string
	add := func(addrs ...string) {
		for _, a := range addrs {
			key := strings.ToLower(strings.TrimSpace(a))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, strings.TrimSpace(a))
		}
	}
	add(e.From)
	add(e.To...)
	add(e.Cc...)
	return out
}
