package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/ust-cache/ust-cache/internal/cache"
	"github.com/ust-cache/ust-cache/internal/config"
	"github.com/ust-cache/ust-cache/internal/fetch"
	"github.com/ust-cache/ust-cache/internal/logging"
	"github.com/ust-cache/ust-cache/internal/server"
	"github.com/ust-cache/ust-cache/internal/server/routes"
	"github.com/ust-cache/ust-cache/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
	listEntries bool
	serve       bool
	urls        []string
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["cache_dir"] = cfg.Cache.Dir
		fields["fetch_timeout"] = cfg.Cache.FetchTimeout.DurationValue().String()
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	if !opts.listEntries && !opts.serve && len(opts.urls) == 0 {
		fmt.Fprintln(stdErr, "至少需要一个 URL，或使用 -list / -serve")
		return 2
	}

	// 启动顺序：配置 → 日志 → 回源客户端 → 缓存管理器，所有入口共享同一个 Manager。
	fetcher := fetch.New(fetch.NewClient(cfg), logger, cfg.Cache.UserAgent)
	manager, err := cache.NewManager(cache.Options{
		Dir:     cfg.Cache.Dir,
		Fetcher: fetcher,
		Logger:  logger,
	})
	if err != nil {
		fmt.Fprintf(stdErr, "初始化缓存失败: %v\n", err)
		return 1
	}

	fields := logging.BaseFields("startup", opts.configPath)
	fields["cache_dir"] = manager.Dir()
	fields["entries"] = len(manager.Entries())
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("缓存初始化完成")

	switch {
	case opts.serve:
		if err := startHTTPServer(cfg, manager, logger); err != nil {
			fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
			return 1
		}
		return 0
	case opts.listEntries:
		if err := printJSON(manager.Entries()); err != nil {
			fmt.Fprintf(stdErr, "输出条目失败: %v\n", err)
			return 1
		}
		return 0
	}

	for _, target := range opts.urls {
		doc, err := manager.FetchDecoded(context.Background(), target)
		if err != nil {
			fmt.Fprintf(stdErr, "获取 %s 失败: %v\n", target, err)
			return 1
		}
		if err := printJSON(doc.Value()); err != nil {
			fmt.Fprintf(stdErr, "输出文档失败: %v\n", err)
			return 1
		}
	}
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("ust-cache", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
		list       bool
		serve      bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（可被 UST_CACHE_CONFIG 指定，留空则只用默认值与环境变量）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")
	fs.BoolVar(&list, "list", false, "列出缓存索引条目")
	fs.BoolVar(&serve, "serve", false, "启动 HTTP 服务")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("UST_CACHE_CONFIG")
	if configFlag != "" {
		path = configFlag
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
		listEntries: list,
		serve:       serve,
		urls:        fs.Args(),
	}, nil
}

func printJSON(value any) error {
	enc := json.NewEncoder(stdOut)
	enc.SetIndent("", "    ")
	return enc.Encode(value)
}

func startHTTPServer(cfg *config.Config, manager *cache.Manager, logger *logrus.Logger) error {
	port := cfg.Global.ListenPort
	source := server.NewSerializedSource(manager)
	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Source:     source,
		ListenPort: port,
	})
	if err != nil {
		return err
	}
	routes.RegisterEntryRoutes(app, source, nil)

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}
