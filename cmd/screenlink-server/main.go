package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shanesims/screenlink/internal/admin"
	"github.com/shanesims/screenlink/internal/config"
	"github.com/shanesims/screenlink/internal/eventrouter"
	"github.com/shanesims/screenlink/internal/layout"
	"github.com/shanesims/screenlink/internal/logging"
	"github.com/shanesims/screenlink/internal/supervisor"
)

var (
	version = "0.1.0"

	cfgFile     string
	bindAddr    string
	adminAddr   string
	nameOverride string
	bindTimeoutSeconds int
	logLevel    string
	logFormat   string
)

var log = logging.L("main")

var rootCmd = &cobra.Command{
	Use:   "screenlink-server",
	Short: "screenlink input-routing server",
	Long:  "screenlink-server routes keyboard, mouse, and clipboard events across a set of networked screens.",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "start the server",
	Run: func(cmd *cobra.Command, args []string) {
		runServer()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("screenlink-server v%s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "check whether a server is accepting connections at the configured bind address",
	Run: func(cmd *cobra.Command, args []string) {
		checkStatus()
	},
}

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "print how to make a running server reload its config file (it reloads on SIGHUP; this command sends no signal)",
	Run: func(cmd *cobra.Command, args []string) {
		reloadServer()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "/etc/screenlink/screenlink.conf", "config file path")
	rootCmd.PersistentFlags().StringVar(&bindAddr, "bind", "", "listen address (overrides SCREENLINK_BIND)")
	rootCmd.PersistentFlags().StringVar(&adminAddr, "admin-bind", "", "admin feed listen address (overrides SCREENLINK_ADMIN_BIND)")
	rootCmd.PersistentFlags().StringVar(&nameOverride, "name", "", "local screen name (overrides SCREENLINK_NAME and the OS hostname)")
	rootCmd.PersistentFlags().IntVar(&bindTimeoutSeconds, "bind-timeout", 0, "seconds to retry a busy bind address before aborting (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text or json")

	rootCmd.AddCommand(runCmd, versionCmd, statusCmd, reloadCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func resolveEnv() config.EnvOverrides {
	env := config.LoadEnvOverrides()
	if bindAddr != "" {
		env.ServerAddr = bindAddr
	}
	if adminAddr != "" {
		env.AdminAddr = adminAddr
	}
	if nameOverride != "" {
		env.Name = nameOverride
	}
	if bindTimeoutSeconds > 0 {
		env.BindTimeout = time.Duration(bindTimeoutSeconds) * time.Second
	}
	if logLevel != "" {
		env.LogLevel = logLevel
	}
	if logFormat != "" {
		env.LogFormat = logFormat
	}
	return env
}

func localName(env config.EnvOverrides) string {
	if env.Name != "" {
		return env.Name
	}
	if hostname, err := os.Hostname(); err == nil {
		return hostname
	}
	return "local"
}

func runServer() {
	env := resolveEnv()

	format := env.LogFormat
	if format == "" {
		format = "text"
	}
	level := env.LogLevel
	if level == "" {
		level = "info"
	}
	logging.Init(format, level, os.Stdout)
	log = logging.L("main")

	cfg, err := config.Load(cfgFile, env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	primaryName := cfg.CanonicalName(localName(env))
	if !cfg.HasPrimary(primaryName) {
		fmt.Fprintf(os.Stderr, "local screen %q is not declared as a screen in %s\n", primaryName, cfgFile)
		os.Exit(1)
	}

	driver := newHeadlessDriver(primaryName, layout.Shape{Width: 1920, Height: 1080, ZoneSize: 1})
	srv, err := supervisor.New(cfg, primaryName, driver)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start: %v\n", err)
		os.Exit(1)
	}

	shutdownGrace := eventrouter.ShutdownGrace
	ctx, cancel := context.WithCancel(context.Background())
	// A platform build registers eventrouter.New(srv.Engine(), ...) as the
	// callback target for its ScreenDriver's input-capture hooks; the
	// headless driver here has no input source to route.
	_ = eventrouter.New(srv.Engine(), func(grace time.Duration) {
		shutdownGrace = grace
		cancel()
	})

	feed := admin.NewFeed(admin.DefaultPermits)
	if cfg.AdminAddress() != "" {
		go func() {
			if err := feed.Serve(ctx, cfg.AdminAddress(), cfg.BindTimeout()); err != nil {
				log.Error("admin feed exited", "error", err)
			}
		}()
	}

	go func() {
		if err := srv.Serve(ctx); err != nil {
			log.Error("server exited", "error", err)
			cancel()
		}
	}()

	log.Info("screenlink-server running", "name", primaryName, "bind", cfg.ServerAddress(), "pid", os.Getpid())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		select {
		case sig := <-sigChan:
			if sig == syscall.SIGHUP {
				reloadConfig(srv, primaryName)
				continue
			}
			log.Info("shutting down", "signal", sig)
			cancel()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
			srv.Shutdown(shutdownCtx)
			shutdownCancel()
			log.Info("screenlink-server stopped")
			return
		case <-ctx.Done():
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
			srv.Shutdown(shutdownCtx)
			shutdownCancel()
			log.Info("screenlink-server stopped")
			return
		}
	}
}

func reloadConfig(srv *supervisor.Server, primaryName string) {
	env := resolveEnv()
	newCfg, err := config.Load(cfgFile, env)
	if err != nil {
		log.Error("reload: config load failed, keeping previous config", "error", err)
		return
	}
	if err := srv.SetConfig(newCfg, primaryName); err != nil {
		log.Error("reload: config rejected", "error", err)
		return
	}
	log.Info("reload: config applied")
}

func reloadServer() {
	fmt.Println("send SIGHUP to the running screenlink-server process to reload its config, e.g.: kill -HUP <pid>")
}

func checkStatus() {
	env := resolveEnv()
	cfg, err := config.Load(cfgFile, env)
	if err != nil {
		fmt.Printf("config error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("configured bind address: %s\n", cfg.ServerAddress())
	if cfg.AdminAddress() != "" {
		fmt.Printf("configured admin address: %s\n", cfg.AdminAddress())
	}
	fmt.Printf("declared screens: %v\n", cfg.Screens())

	conn, err := net.DialTimeout("tcp", cfg.ServerAddress(), 2*time.Second)
	if err != nil {
		fmt.Printf("not accepting connections: %v\n", err)
		os.Exit(1)
	}
	conn.Close()
	fmt.Println("accepting connections")
}
