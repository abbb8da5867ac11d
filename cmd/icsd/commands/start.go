package commands

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/icsd/icsd/internal/alert"
	"github.com/icsd/icsd/internal/commandlog"
	"github.com/icsd/icsd/internal/config"
	"github.com/icsd/icsd/internal/engine"
	"github.com/icsd/icsd/internal/logx"
	"github.com/icsd/icsd/internal/rpc"
	"github.com/icsd/icsd/internal/xerrors"
	"github.com/spf13/cobra"
)

const (
	defaultPersistInterval = 30 * time.Second
	defaultShutdownTimeout = 10 * time.Second
)

// StartCmd launches icsd in the foreground: it does not daemonize itself,
// expecting to be supervised (init script, systemd unit, or similar)
// rather than forking.
var StartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the icsd cluster node daemon",
	RunE:  runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	paths := config.LoadPaths()
	log := logx.Named("icsd")

	for _, dir := range []string{paths.Log, paths.Conf, paths.Var, paths.UDS} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return xerrors.Wrapf(err, "create directory %s", dir)
		}
	}

	cmdLog, err := commandlog.Open(paths.CommandLogFile(), log.Named("commandlog"))
	if err != nil {
		return xerrors.Wrap(err, "open command log")
	}
	defer cmdLog.Close()

	broadcaster := rpc.NewBroadcaster(log.Named("dashboard"))

	mailer := &alert.SMTPMailer{Addr: paths.SMTPAddr, From: paths.SMTPFrom}

	eng, err := engine.New(engine.Options{
		Paths:       paths,
		AlertMailer: mailer,
		CommandLog:  cmdLog,
		Broadcaster: broadcaster,
		Log:         log,
	})
	if err != nil {
		return xerrors.Wrap(err, "construct engine")
	}

	cfgFile, err := config.ReadFile(paths.ConfFile())
	if err != nil {
		return xerrors.Wrap(err, "load configuration")
	}
	if err := eng.LoadConfig(cfgFile); err != nil {
		return xerrors.Wrap(err, "apply configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start blocks until every resource has been probed once, so
	// GrpOnlineAuto never races an AutoStart decision against a
	// resource that hasn't reported a state yet.
	eng.Start(ctx)
	eng.GrpOnlineAuto()

	watcher, err := config.NewWatcher(paths.ConfFile(), func(f config.File) error {
		return eng.LoadConfig(f)
	}, log.Named("watcher"))
	if err != nil {
		return xerrors.Wrap(err, "create config watcher")
	}
	persister := config.NewPersister(paths, defaultPersistInterval, eng.Snapshot, log.Named("persister"))
	eng.AttachPersistence(ctx, persister, watcher)

	tcpLis, err := net.Listen("tcp", paths.RPCAddr)
	if err != nil {
		return xerrors.Wrapf(err, "listen on %s", paths.RPCAddr)
	}

	os.Remove(paths.UDSSocket())
	udsLis, err := net.Listen("unix", paths.UDSSocket())
	if err != nil {
		return xerrors.Wrapf(err, "listen on %s", paths.UDSSocket())
	}

	rpcServer := rpc.NewServer(eng, log.Named("rpc"), rpc.Dial)

	rpcErr := make(chan error, 1)
	go func() {
		rpcErr <- rpcServer.Serve(ctx, tcpLis, udsLis)
	}()

	dashMux := http.NewServeMux()
	dashMux.Handle("/ws", broadcaster)
	dashSrv := &http.Server{Addr: paths.DashAddr, Handler: dashMux}
	dashErr := make(chan error, 1)
	go func() {
		if err := dashSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			dashErr <- err
		}
	}()

	log.Infow("icsd started", "node", eng.NodeName(), "cluster", eng.ClusterName(), "rpc_addr", paths.RPCAddr, "dash_addr", paths.DashAddr)

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, stopping gracefully")
	case err := <-rpcErr:
		log.Errorw("rpc server stopped unexpectedly", "error", err)
	case err := <-dashErr:
		log.Errorw("dashboard server stopped unexpectedly", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	dashSrv.Shutdown(shutdownCtx)

	eng.Stop()
	logx.Sync()

	return nil
}
