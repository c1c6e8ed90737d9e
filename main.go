package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/geocine/geopress/internal/cli"
	"github.com/geocine/geopress/internal/config"
	"github.com/geocine/geopress/internal/loader"
	"github.com/geocine/geopress/internal/markdown"
	"github.com/geocine/geopress/internal/preview"
	"github.com/geocine/geopress/internal/renderer"
)

func main() {
	// Define subcommands
	renderCmd := flag.NewFlagSet("render", flag.ExitOnError)
	renderRoot := renderCmd.String("root", ".", "Site root holding site.toml")

	tocCmd := flag.NewFlagSet("toc", flag.ExitOnError)
	tocRoot := tocCmd.String("root", ".", "Site root holding site.toml")

	parseCmd := flag.NewFlagSet("parse", flag.ExitOnError)
	parseRoot := parseCmd.String("root", ".", "Site root holding site.toml")

	buildCmd := flag.NewFlagSet("build", flag.ExitOnError)
	buildRoot := buildCmd.String("root", ".", "Site root holding site.toml")
	buildDir := buildCmd.String("dest-dir", "", "Destination directory for build")
	buildVerbose := buildCmd.Bool("verbose", false, "Enable verbose output")

	initCmd := flag.NewFlagSet("init", flag.ExitOnError)
	initName := initCmd.String("name", "", "Site directory name (or pass as positional)")
	initTitle := initCmd.String("title", "", "Site title (defaults to name)")
	initSrc := initCmd.String("src", "posts", "Posts directory")
	initBuildDir := initCmd.String("build-dir", "public", "Build output directory")
	initYes := initCmd.Bool("yes", false, "Skip interactive prompts and use provided/default values")

	serveCmd := flag.NewFlagSet("serve", flag.ExitOnError)
	serveRoot := serveCmd.String("root", ".", "Site root holding site.toml")
	servePort := serveCmd.Int("port", 0, "Port to serve on (default from site.toml)")
	serveHost := serveCmd.String("hostname", "", "Hostname to bind to (default from site.toml)")
	serveOpen := serveCmd.Bool("open", false, "Open in browser")
	serveVerbose := serveCmd.Bool("verbose", false, "Enable verbose output")

	cleanCmd := flag.NewFlagSet("clean", flag.ExitOnError)
	cleanRoot := cleanCmd.String("root", ".", "Site root holding site.toml")
	cleanDest := cleanCmd.String("dest-dir", "", "Destination directory to clean")

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "render":
		renderCmd.Parse(os.Args[2:])
		handleRender(*renderRoot, renderCmd.Arg(0))

	case "toc":
		tocCmd.Parse(os.Args[2:])
		handleTOC(*tocRoot, tocCmd.Arg(0))

	case "parse":
		parseCmd.Parse(os.Args[2:])
		handleParse(*parseRoot, parseCmd.Arg(0))

	case "build":
		buildCmd.Parse(os.Args[2:])
		handleBuild(*buildRoot, *buildDir, *buildVerbose)

	case "init":
		initCmd.Parse(os.Args[2:])
		handleInit(initCmd, *initName, *initTitle, *initSrc, *initBuildDir, *initYes)

	case "serve":
		serveCmd.Parse(os.Args[2:])
		handleServe(*serveRoot, *serveHost, *servePort, *serveOpen, *serveVerbose)

	case "clean":
		cleanCmd.Parse(os.Args[2:])
		handleClean(*cleanRoot, *cleanDest)

	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("Usage: geopress [command]")
	fmt.Println("Commands:")
	fmt.Println("  render     Render a Markdown file to HTML on stdout")
	fmt.Println("  toc        Print the table of contents of a Markdown file as JSON")
	fmt.Println("  parse      Print the HTML and table of contents of a Markdown file as JSON")
	fmt.Println("  build      Build the site")
	fmt.Println("  init       Initialize a new site")
	fmt.Println("  serve      Serve the site with live reload")
	fmt.Println("  clean      Clean the build directory")
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, "error", err)
	os.Exit(1)
}

func loadConfig(log *slog.Logger, root string) *config.Config {
	cfg, err := config.Load(root)
	if err != nil {
		fatal(log, "could not load config", err)
	}
	return cfg
}

// readSource reads a Markdown file, or stdin when name is empty or "-"
func readSource(name string) (string, error) {
	if name == "" || name == "-" {
		b, err := io.ReadAll(os.Stdin)
		return string(b), err
	}
	b, err := os.ReadFile(name)
	return string(b), err
}

func newMarkdown(log *slog.Logger, root string) *markdown.Renderer {
	opts := loadConfig(log, root).MarkdownOptions()
	opts.Logger = log
	md, err := markdown.New(opts)
	if err != nil {
		fatal(log, "invalid markdown settings", err)
	}
	return md
}

func handleRender(root, file string) {
	log := newLogger(false)
	src, err := readSource(file)
	if err != nil {
		fatal(log, "failed to read input", err)
	}
	html, err := newMarkdown(log, root).Render(context.Background(), src)
	if err != nil {
		fatal(log, "render failed", err)
	}
	fmt.Print(html)
}

func handleTOC(root, file string) {
	log := newLogger(false)
	src, err := readSource(file)
	if err != nil {
		fatal(log, "failed to read input", err)
	}
	printJSON(log, newMarkdown(log, root).TOC(src))
}

func handleParse(root, file string) {
	log := newLogger(false)
	src, err := readSource(file)
	if err != nil {
		fatal(log, "failed to read input", err)
	}
	res, err := newMarkdown(log, root).Parse(context.Background(), src)
	if err != nil {
		fatal(log, "render failed", err)
	}
	printJSON(log, res)
}

func printJSON(log *slog.Logger, v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		fatal(log, "failed to write output", err)
	}
}

func handleBuild(root, destDir string, verbose bool) {
	log := newLogger(verbose)
	cfg := loadConfig(log, root)

	outDir := destDir
	if outDir == "" {
		outDir = filepath.Join(root, cfg.Build.BuildDir)
	}

	site, err := loader.NewArticleLoader(root, cfg).WithLogger(log).Load()
	if err != nil {
		fatal(log, "failed to load site", err)
	}
	r, err := renderer.NewFromConfig(root, cfg, log)
	if err != nil {
		fatal(log, "failed to create renderer", err)
	}

	start := time.Now()
	report, err := r.Render(context.Background(), &renderer.RenderContext{
		Root:    root,
		DestDir: outDir,
		Site:    site,
		Config:  cfg,
	})
	if err != nil {
		fatal(log, "build failed", err)
	}

	fmt.Printf("Built %d articles into '%s' in %s.\n", report.Articles, outDir, time.Since(start).Round(time.Millisecond))
	if report.Drafts > 0 {
		fmt.Printf("Skipped %d drafts.\n", report.Drafts)
	}
	if len(report.Failed) > 0 {
		fmt.Printf("%d articles could not be rendered: %v\n", len(report.Failed), report.Failed)
		os.Exit(1)
	}
}

func handleInit(initCmd *flag.FlagSet, name, title, src, buildDir string, yes bool) {
	// Determine name: prefer --name, then the first positional arg
	if name == "" {
		if initCmd.NArg() >= 1 {
			name = initCmd.Arg(0)
		} else {
			name = "my-site"
		}
	}

	opts := cli.InitOptions{
		Name:     name,
		Title:    title,
		SrcDir:   src,
		BuildDir: buildDir,
	}
	if !yes {
		cli.FillInitOptionsInteractive(os.Stdin, os.Stdout, &opts)
	}

	fmt.Printf("Initializing new site: %s\n", opts.Name)
	if err := cli.Init(opts); err != nil {
		fatal(newLogger(false), "failed to initialize site", err)
	}

	fmt.Printf("\nSuccessfully created site in '%s'\n", opts.Name)
	fmt.Println("Next steps:")
	fmt.Printf("  cd %s\n", opts.Name)
	fmt.Println("  geopress serve     # preview locally with live reload")
	fmt.Println("  geopress build     # build the static site")
}

// handleServe previews the site from its sources and reloads on changes.
func handleServe(root, host string, port int, open, verbose bool) {
	log := newLogger(verbose)
	cfg := loadConfig(log, root)
	if host != "" {
		cfg.Preview.Hostname = host
	}
	if port != 0 {
		cfg.Preview.Port = port
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := preview.NewServer(ctx, root, cfg, log)
	if err != nil {
		fatal(log, "failed to load site", err)
	}

	addr := cfg.Address()
	if open {
		go func() {
			time.Sleep(300 * time.Millisecond)
			if err := openBrowser("http://" + addr); err != nil {
				log.Warn("could not open browser", "error", err)
			}
		}()
	}

	if err := srv.ListenAndServe(ctx, addr); err != nil {
		fatal(log, "server error", err)
	}
}

func openBrowser(url string) error {
	switch runtime.GOOS {
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	case "darwin":
		return exec.Command("open", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}

func handleClean(root, destOverride string) {
	log := newLogger(false)
	cfg := loadConfig(log, root)

	outDir := destOverride
	if outDir == "" {
		outDir = filepath.Join(root, cfg.Build.BuildDir)
	}
	if _, err := os.Stat(outDir); os.IsNotExist(err) {
		fmt.Printf("Nothing to clean; directory '%s' does not exist.\n", outDir)
		return
	}

	// Summarize contents
	var files, dirs int
	var bytes int64
	filepath.Walk(outDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if path != outDir {
				dirs++
			}
			return nil
		}
		files++
		bytes += info.Size()
		return nil
	})

	if err := renderer.Clean(root, outDir); err != nil {
		fatal(log, fmt.Sprintf("failed to remove '%s'", outDir), err)
	}
	fmt.Printf("Removed %d files, %d directories, %s from '%s'.\n", files, dirs, humanBytes(bytes), outDir)
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	val := float64(n) / float64(div)
	suffix := []string{"KiB", "MiB", "GiB", "TiB"}
	if exp >= len(suffix) {
		return fmt.Sprintf("%.1f PiB", val/float64(unit))
	}
	return fmt.Sprintf("%.1f %s", val, suffix[exp])
}
