package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/mjl-/mailflow/config"
	"github.com/mjl-/mailflow/moxvar"
	"github.com/mjl-/mailflow/webflow"
)

func cmdServe(c *cmd) {
	c.help = `Start the HTTP service for flowing text and rewriting messages.

The service listens on the address from the Listen section of the config file,
or localhost:1077 if the config file has no Listen section. The endpoints are
listed at /.

The service shuts down gracefully on SIGINT and SIGTERM, requests in progress
are given some time to finish.
`
	if len(c.Parse()) != 0 {
		c.Usage()
	}
	conf := mustLoadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err := serve(ctx, c, conf)
	xcheckf(err, "serve")
}

// serve listens on the configured address and serves until ctx is canceled.
func serve(ctx context.Context, c *cmd, conf config.Static) error {
	listen := conf.Listen
	if listen == nil {
		listen = &config.Listen{Address: config.DefaultAddress, MaxBodySize: config.DefaultMaxBodySize}
	}
	ln, err := net.Listen("tcp", listen.Address)
	if err != nil {
		return err
	}
	c.log.Print("starting mailflow http service",
		slog.String("version", moxvar.Version),
		slog.Any("address", ln.Addr()),
		slog.Int("width", conf.Width),
		slog.Bool("metrics", listen.Metrics))

	handler := webflow.NewHandler(webflow.Config{
		Width:       conf.Width,
		Procs:       conf.Procs,
		Fallback:    conf.Fallback,
		MaxBodySize: listen.MaxBodySize,
		Metrics:     listen.Metrics,
	})
	err = webflow.Serve(ctx, ln, handler)
	c.log.Print("mailflow http service stopped")
	return err
}
