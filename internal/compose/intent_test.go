package compose

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/nhle/webmail/internal/model"
)

func TestPrefixSubject(t *testing.T) {
	tests := []struct {
		prefix  string
		subject string
		want    string
	}{
		{ReplyPrefix, "hi", "Re: hi"},
		{ReplyPrefix, "Re: hi", "Re: hi"},
		{ReplyPrefix, "re: hi", "Re: re: hi"},
		{ForwardPrefix, "hi", "Fwd: hi"},
		{ForwardPrefix, "Fwd: hi", "Fwd: hi"},
		{ForwardPrefix, "Re: hi", "Fwd: Re: hi"},
		{ReplyPrefix, "", "Re: "},
	}

	for _, tt := range tests {
		if got := PrefixSubject(tt.prefix, tt.subject); got != tt.want {
			t.Errorf("PrefixSubject(%q, %q) = %q, want %q",
				tt.prefix, tt.subject, got, tt.want)
		}
	}
}

func sampleEmail() model.Email {
	return model.Email{
		LocalID:   "m1",
		From:      "bob@example.com",
		FromName:  "Bob",
		To:        []string{"ann@example.com", "carol@example.com"},
		Cc:        []string{"Dave@example.com", "bob@example.com"},
		Subject:   "Re: hi",
		BodyHTML:  "<p>Hello</p><p>See you</p>",
		SentAt:    time.Date(2024, 3, 4, 15, 4, 0, 0, time.UTC),
		ThreadID:  "t1",
		MessageID: "<m1@example.com>",
	}
}

func TestReplyIntent(t *testing.T) {
	intent := ReplyIntent(sampleEmail())

	if intent.Mode != model.ComposeReply {
		t.Errorf("mode = %s", intent.Mode)
	}
	if intent.Subject != "Re: hi" {
		t.Errorf("subject = %q, want no double prefix", intent.Subject)
	}
	if !reflect.DeepEqual(intent.To, []string{"bob@example.com"}) {
		t.Errorf("to = %v", intent.To)
	}
	if intent.InReplyToID != "m1" || intent.ThreadID != "t1" {
		t.Errorf("correlation = %q/%q", intent.InReplyToID, intent.ThreadID)
	}
	if intent.OriginalSender != "Bob" {
		t.Errorf("original sender = %q", intent.OriginalSender)
	}
	if !strings.Contains(intent.Body, "> Hello") {
		t.Errorf("body should quote the original, got %q", intent.Body)
	}
}

func TestReplyAllIntent_ExcludesSelf(t *testing.T) {
	intent := ReplyAllIntent(sampleEmail(), "ANN@example.com")

	want := []string{"bob@example.com", "carol@example.com", "Dave@example.com"}
	if !reflect.DeepEqual(intent.To, want) {
		t.Errorf("to = %v, want %v", intent.To, want)
	}
	if intent.Mode != model.ComposeReplyAll {
		t.Errorf("mode = %s", intent.Mode)
	}
}

func TestForwardIntent(t *testing.T) {
	e := sampleEmail()
	e.Subject = "hi"
	intent := ForwardIntent(e)

	if intent.Subject != "Fwd: hi" {
		t.Errorf("subject = %q", intent.Subject)
	}
	if len(intent.To) != 0 {
		t.Errorf("forward should start without recipients, got %v", intent.To)
	}
	if intent.ThreadID != "" {
		t.Errorf("forward should not carry a thread, got %q", intent.ThreadID)
	}
	for _, want := range []string{"Forwarded message", "From: Bob <bob@example.com>", "Subject: hi", "Hello"} {
		if !strings.Contains(intent.Body, want) {
			t.Errorf("body missing %q:\n%s", want, intent.Body)
		}
	}
}

func TestNewIntent(t *testing.T) {
	if got := NewIntent(); got.Mode != model.ComposeNew || got.Subject != "" {
		t.Errorf("unexpected intent %+v", got)
	}
}
