package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"nullbytes.dev/wipecert/storage/casregistry"
	"nullbytes.dev/wipecert/storage/grpccas"

	_ "nullbytes.dev/wipecert/storage/ipfs"
	_ "nullbytes.dev/wipecert/storage/localfs"
	_ "nullbytes.dev/wipecert/storage/memcas"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("wipecert-casd", flag.ContinueOnError)
	fs.SetOutput(errOut)
	listen := fs.String("listen", "127.0.0.1:7777", "gRPC listen address")
	metricsListen := fs.String("metrics-listen", "", "Prometheus /metrics listen address (disabled when empty)")
	backend := fs.String("backend", "localfs", "CAS backend name")
	maxMsg := fs.Int("max-msg-bytes", 0, "Maximum gRPC message size (default: 4 MiB payload limit plus framing)")
	logLevel := fs.String("log-level", "info", "Log level: debug, info, warn, error")
	listBackends := fs.Bool("list-backends", false, "List supported backends and exit")

	casregistry.RegisterFlags(fs, casregistry.UsageDaemon)

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *listBackends {
		for _, b := range casregistry.List(casregistry.UsageDaemon) {
			if b.Description == "" {
				_, _ = fmt.Fprintf(out, "%s\n", b.Name)
				continue
			}
			_, _ = fmt.Fprintf(out, "%s\t%s\n", b.Name, b.Description)
		}
		return 0
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintf(errOut, "invalid --log-level: %v\n", err)
		return 2
	}
	log := slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level}))

	cas, closeFn, err := casregistry.Open(*backend, casregistry.UsageDaemon)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	if closeFn != nil {
		defer closeFn()
	}

	lis, err := net.Listen("tcp", *listen)
	if err != nil {
		log.Error("listen", "addr", *listen, "err", err)
		return 1
	}
	defer lis.Close()

	metrics := grpccas.NewMetrics()
	opts := []grpc.ServerOption{grpc.UnaryInterceptor(metrics.UnaryServerInterceptor(log))}
	if *maxMsg > 0 {
		opts = append(opts, grpc.MaxRecvMsgSize(*maxMsg), grpc.MaxSendMsgSize(*maxMsg))
	} else {
		opts = append(opts, grpc.MaxRecvMsgSize(grpccas.DefaultMaxMsgBytes), grpc.MaxSendMsgSize(grpccas.DefaultMaxMsgBytes))
	}
	s := grpc.NewServer(opts...)
	grpccas.RegisterPayloadStoreServer(s, &grpccas.Server{CAS: cas})

	var metricsSrv *http.Server
	if *metricsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsSrv = &http.Server{Addr: *metricsListen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server", "err", err)
			}
		}()
		log.Info("metrics listening", "addr", *metricsListen)
	}

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		if metricsSrv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = metricsSrv.Shutdown(shutdownCtx)
			cancel()
		}
		s.GracefulStop()
	}()

	log.Info("wipecert-casd listening", "addr", lis.Addr().String(), "backend", *backend)
	if err := s.Serve(lis); err != nil {
		log.Error("serve", "err", err)
		return 1
	}
	return 0
}
