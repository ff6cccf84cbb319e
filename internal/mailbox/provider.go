package mailbox

import (
	"log/slog"

	"github.com/nhle/webmail/internal/model"
	"github.com/nhle/webmail/internal/provider"
	"github.com/nhle/webmail/internal/provider/local"
	"github.com/nhle/webmail/internal/provider/remote"
)

// SelectProvider returns the provider matching the account's linkage:
// the provider proxy for linked accounts, the mail store otherwise. The
// choice holds for the whole session.
func SelectProvider(
	acct model.Account,
	api provider.API,
	pageSize int,
	logger *slog.Logger,
) provider.Provider {
	if acct.IsProviderLinked {
		return remote.NewAdapter(api, acct.LinkedProviderEmail, pageSize, logger)
	}
	return local.NewAdapter(api, pageSize)
}
