// Command webmail is a terminal client for the mail API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nhle/webmail/internal/ai"
	"github.com/nhle/webmail/internal/credential"
	"github.com/nhle/webmail/internal/logging"
	"github.com/nhle/webmail/internal/mailbox"
	"github.com/nhle/webmail/internal/model"
	"github.com/nhle/webmail/internal/provider"
	"github.com/nhle/webmail/internal/session"
)

const usage = `usage: webmail [-config path] <command> [flags] [args]

commands:
  signup                 create an account and sign in
  login                  sign in (-token to adopt a token from a browser sign-in)
  logout                 sign out
  whoami                 show the signed-in account
  link                   print the URL that links a provider mailbox
  unlink                 disconnect the linked provider mailbox
  config                 show or change settings
  list                   list a folder
  search <query>         search messages
  read <id>              show a message
  star <id>              toggle the star on a message
  mark <id>              mark a message read (-unread to undo)
  trash <id>             move a message to the trash
  delete <id>            delete a message permanently
  send                   write and send a message
  reply <id>             reply to a message (-all for everyone)
  forward <id>           forward a message
  watch                  keep a folder listing up to date
`

type command func(ctx context.Context, a *app, args []string) error

var commands = map[string]command{
	"signup":  runSignup,
	"login":   runLogin,
	"logout":  runLogout,
	"whoami":  runWhoami,
	"link":    runLink,
	"unlink":  runUnlink,
	"config":  runConfig,
	"list":    runList,
	"search":  runSearch,
	"read":    runRead,
	"star":    runStar,
	"mark":    runMark,
	"trash":   runTrash,
	"delete":  runDelete,
	"send":    runSend,
	"reply":   runReply,
	"forward": runForward,
	"watch":   runWatch,
}

func main() {
	fs := flag.NewFlagSet("webmail", flag.ExitOnError)
	configPath := fs.String("config", model.DefaultConfigPath(), "path to config file")
	fs.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	_ = fs.Parse(os.Args[1:])

	if fs.NArg() == 0 {
		fs.Usage()
		os.Exit(2)
	}
	cmd, ok := commands[fs.Arg(0)]
	if !ok {
		fmt.Fprintf(os.Stderr, "webmail: unknown command %q\n\n", fs.Arg(0))
		fs.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(*configPath, os.Stdout)
	if err == nil {
		err = cmd(ctx, a, fs.Args()[1:])
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "webmail:", err)
		os.Exit(1)
	}
}

// app holds what every command needs.
type app struct {
	cfg        *model.AppConfig
	configPath string
	logger     *slog.Logger
	client     *session.Client
	out        io.Writer
}

func newApp(configPath string, out io.Writer) (*app, error) {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)

	creds, err := credential.Open(cfg.Credential)
	if err != nil {
		return nil, err
	}

	client := session.New(cfg.API.BaseURL, creds,
		session.WithLogger(logger),
		session.WithSessionInvalidHandler(func(err error) {
			logger.Warn("session ended", "error", err)
		}),
	)
	return &app{
		cfg:        cfg,
		configPath: configPath,
		logger:     logger,
		client:     client,
		out:        out,
	}, nil
}

// controller loads the account and builds a mailbox controller over the
// provider its linkage selects.
func (a *app) controller(ctx context.Context, opts ...mailbox.Option) (*mailbox.Controller, error) {
	acct, err := a.client.Me(ctx)
	if errors.Is(err, session.ErrNotAuthenticated) {
		return nil, errors.New("not signed in; run `webmail login` first")
	}
	if err != nil {
		return nil, err
	}

	p := mailbox.SelectProvider(*acct, a.client, a.cfg.API.PageSize, a.logger)
	opts = append([]mailbox.Option{
		mailbox.WithLogger(a.logger),
		mailbox.WithTimeout(a.cfg.API.Timeout),
		mailbox.WithToastTTL(a.cfg.Mailbox.ToastTTL),
		mailbox.WithDrafter(ai.NewDrafter(a.client)),
		mailbox.WithSelfAddress(acct.SelfAddress()),
	}, opts...)
	return mailbox.New(p, opts...), nil
}

// counted reports whether listings from c carry page totals.
func counted(c *mailbox.Controller) bool {
	return c.Provider().Kind() == provider.KindLocal
}
