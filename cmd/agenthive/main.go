// =============================================================================
// AgentHive 主入口
// =============================================================================
// 协调基座入口点，包含请求处理、Redis 持久化、Prometheus 指标
//
// 使用方法:
//
//	agenthive ask "your question"         # 处理单个请求
//	agenthive serve                       # 启动服务（指标端点）
//	agenthive serve --config config.yaml  # 指定配置文件
//	agenthive version                     # 显示版本信息
// =============================================================================
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/agenthive"
	"github.com/BaSui01/agenthive/config"
	"github.com/BaSui01/agenthive/coordinator"
	"github.com/BaSui01/agenthive/memory"
	"github.com/BaSui01/agenthive/persistence"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "ask":
		runAsk(os.Args[2:])
	case "serve":
		runServe(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// =============================================================================
// 💬 ask 命令
// =============================================================================

func runAsk(args []string) {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	timeout := fs.Duration("timeout", 30*time.Second, "Request timeout")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: agenthive ask [flags] \"request text\"")
		os.Exit(1)
	}

	sys := buildSystem(*configPath)
	ctx := context.Background()
	sys.Start(ctx)
	defer sys.Stop()

	out := sys.ProcessRequest(ctx, fs.Arg(0), *timeout)
	if !out.Success {
		fmt.Fprintf(os.Stderr, "request failed: %s (after %s, %d messages)\n",
			out.Err, out.Duration.Round(time.Millisecond), out.MessageCount)
		os.Exit(1)
	}
	fmt.Println(out.Response)
}

// =============================================================================
// 🖥️ serve 命令
// =============================================================================

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	addr := fs.String("addr", ":9090", "Metrics listen address")
	fs.Parse(args)

	sys := buildSystem(*configPath)
	logger := sys.Logger()
	logger.Info("Starting AgentHive",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	sys.Start(ctx)

	mux := http.NewServeMux()
	mux.Handle("/metrics", sys.MetricsHandler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "OK")
	})
	srv := &http.Server{Addr: *addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	sys.Stop()
	logger.Info("AgentHive stopped")
}

// buildSystem loads config and assembles a system with the optional Redis
// message store and an in-process memory index.
func buildSystem(configPath string) *coordinator.System {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	opts := []agenthive.Option{
		agenthive.WithMemoryIndex(memory.NewTermIndex()),
	}
	if addr := os.Getenv("AGENTHIVE_REDIS_ADDR"); addr != "" {
		store, serr := persistence.NewRedisMessageStore(persistence.RedisConfig{Addr: addr})
		if serr != nil {
			fmt.Fprintf(os.Stderr, "Redis not available, running without message store: %v\n", serr)
		} else {
			opts = append(opts, agenthive.WithMessageStore(store))
		}
	}

	sys, err := agenthive.New(cfg, nil, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build system: %v\n", err)
		os.Exit(1)
	}
	return sys
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion() {
	fmt.Printf("AgentHive %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`AgentHive - agent coordination substrate

Usage:
  agenthive ask "text"    Process one request and print the response
  agenthive serve         Run with a metrics/health endpoint
  agenthive version       Show version information

Flags:
  --config path           Config file (YAML); AGENTHIVE_* env vars override
  --timeout duration      Request timeout for ask (default 30s)
  --addr address          Metrics listen address for serve (default :9090)`)
}
