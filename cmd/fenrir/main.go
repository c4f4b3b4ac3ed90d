// Command fenrir runs the matching engine's TCP front end.
//
// Grounded on the teacher's cmd/server/server.go (signal-driven shutdown,
// wiring an Engine into a net.Server), fixing the teacher's literal bug of
// referencing srv before it is constructed (`eng = engine.New(srv, ...)`)
// by wiring the hub and engine first and handing the finished engine to the
// transport server last.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"fenrir/internal/common"
	"fenrir/internal/engine"
	"fenrir/internal/marketdata"
	"fenrir/internal/transport"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	address := flag.String("address", "0.0.0.0", "listen address")
	port := flag.Int("port", 9001, "listen port")
	symbolsFlag := flag.String("symbols", "AAPL,MSFT,GOOG", "comma-separated list of tradable symbols")
	depthCap := flag.Int("depth-cap", engine.DefaultDepthCap, "maximum book snapshot depth")
	queueCap := flag.Int("queue-cap", marketdata.DefaultQueueCapacity, "per-subscriber market-data/trade queue capacity")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	symbols, err := parseSymbols(*symbolsFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid -symbols")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	hub := marketdata.NewHub(*queueCap)
	eng := engine.New(engine.NewConfig(symbols, engine.WithDepthCap(*depthCap)), hub)
	defer eng.Shutdown()

	srv := transport.New(*address, *port, eng)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
		srv.Shutdown()
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("transport server exited")
		}
	}
}

func parseSymbols(raw string) ([]common.Symbol, error) {
	parts := strings.Split(raw, ",")
	symbols := make([]common.Symbol, 0, len(parts))
	for _, p := range parts {
		sym, err := common.ParseSymbol(p)
		if err != nil {
			return nil, err
		}
		symbols = append(symbols, sym)
	}
	return symbols, nil
}
