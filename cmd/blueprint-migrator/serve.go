package main

import (
	"context"
	"io"

	"blueprint-migrator/internal/ctxlog"
	"blueprint-migrator/internal/server"
)

func runServe(ctx context.Context, args []string, _, stderr io.Writer) error {
	var (
		common commonFlags
		addr   string
	)

	fs := newFlagSet("serve", stderr)
	common.register(fs)
	fs.StringVar(&addr, "addr", "", "Listen address. Defaults to server.addr of the configuration.")

	ok, err := parse(fs, args)
	if !ok {
		return err
	}

	ctx, cfg, err := common.setup(ctx, stderr)
	if err != nil {
		return err
	}

	if addr == "" {
		addr = cfg.Server.Addr
	}

	provider, err := cfg.FieldsProvider()
	if err != nil {
		return err
	}

	store, closeStore, err := openHistory(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	log := ctxlog.FromContext(ctx)

	app, err := server.New(cfg, provider, store, log)
	if err != nil {
		return err
	}

	log.Info("server listening", "addr", addr)

	return server.Serve(ctx, app, addr)
}
