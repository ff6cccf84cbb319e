package model

// Account is the signed-in user as reported by the session endpoints.
type Account struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`

	// IsProviderLinked selects the remote provider adapter for every
	// mailbox operation of the session. Changing it requires a new
	// mailbox controller; state is never migrated between adapters.
	IsProviderLinked bool `json:"isProviderLinked"`

	// LinkedProviderEmail is the address of the linked provider
	// mailbox, empty when IsProviderLinked is false.
	LinkedProviderEmail string `json:"linkedProviderEmail,omitempty"`
}

// SelfAddress returns the address the account sends from under its
// current linkage mode.
func (a Account) SelfAddress() string {
	if a.IsProviderLinked && a.LinkedProviderEmail != "" {
		return a.LinkedProviderEmail
	}
	return a.Email
}
