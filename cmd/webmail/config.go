package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/nhle/webmail/internal/model"
)

// runConfig prints the client settings, or saves the ones given as flags
// to the config file.
func runConfig(_ context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	server := fs.String("server", "", "API base URL, e.g. https://mail.example.com/api")
	pageSize := fs.Int("page-size", 0, "messages per page")
	interval := fs.Duration("poll-interval", 0, "background refresh interval for watch")
	level := fs.String("log-level", "", "log level (debug, info, warn, error)")
	_ = fs.Parse(args)

	changed := false
	fs.Visit(func(*flag.Flag) { changed = true })
	if !changed {
		printConfig(a)
		return nil
	}

	if *server != "" {
		a.cfg.API.BaseURL = *server
	}
	if *pageSize > 0 {
		a.cfg.API.PageSize = *pageSize
	}
	if *interval > 0 {
		a.cfg.Mailbox.PollInterval = *interval
	}
	if *level != "" {
		a.cfg.Log.Level = *level
	}

	if err := model.SaveConfig(a.configPath, a.cfg); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Saved %s\n", a.configPath)
	return nil
}

func printConfig(a *app) {
	fmt.Fprintf(a.out, "config:        %s\n", a.configPath)
	fmt.Fprintf(a.out, "server:        %s\n", a.cfg.API.BaseURL)
	fmt.Fprintf(a.out, "page size:     %d\n", a.cfg.API.PageSize)
	fmt.Fprintf(a.out, "poll interval: %s\n", a.cfg.Mailbox.PollInterval)
	fmt.Fprintf(a.out, "log level:     %s\n", a.cfg.Log.Level)
}
