// Package main is the entry point for the scenario engine: an HTTP server
// plus one-shot run and validate commands.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bissakov/qazcode-rpa-sub000/pkg/api"
	"github.com/bissakov/qazcode-rpa-sub000/pkg/ir"
	"github.com/bissakov/qazcode-rpa-sub000/pkg/project"
	"github.com/bissakov/qazcode-rpa-sub000/pkg/runlog"
	"github.com/bissakov/qazcode-rpa-sub000/pkg/runtime"
	"github.com/bissakov/qazcode-rpa-sub000/pkg/store"
	"github.com/bissakov/qazcode-rpa-sub000/pkg/validation"
	"github.com/bissakov/qazcode-rpa-sub000/pkg/vars"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "scenariod",
	Short: "RPA scenario engine",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  serve,
}

var runCmd = &cobra.Command{
	Use:   "run <project-file>",
	Short: "Validate, compile, and execute a project file",
	Args:  cobra.ExactArgs(1),
	RunE:  runProject,
}

var validateCmd = &cobra.Command{
	Use:   "validate <project-file>",
	Short: "Validate a project file and report issues",
	Args:  cobra.ExactArgs(1),
	RunE:  validateProject,
}

func init() {
	rootCmd.Version = version + " (commit=" + commit + ")"
	rootCmd.SetVersionTemplate("scenariod version {{.Version}}\n")

	serveCmd.Flags().Int("port", 0, "HTTP server port (default 8090, env PORT)")
	serveCmd.Flags().String("host", "", "Bind address (default 0.0.0.0, env HOST)")
	serveCmd.Flags().String("projects-dir", "", "Directory of project files to preload (env PROJECTS_DIR)")

	runCmd.Flags().Bool("quiet", false, "Suppress per-instruction log output")

	rootCmd.AddCommand(serveCmd, runCmd, validateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func serve(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	port := envOrDefault("PORT", "8090")
	if v, _ := cmd.Flags().GetInt("port"); v != 0 {
		port = fmt.Sprintf("%d", v)
	}
	host := envOrDefault("HOST", "0.0.0.0")
	if v, _ := cmd.Flags().GetString("host"); v != "" {
		host = v
	}
	projectsDir := os.Getenv("PROJECTS_DIR")
	if v, _ := cmd.Flags().GetString("projects-dir"); v != "" {
		projectsDir = v
	}

	st := store.NewStore()
	if projectsDir != "" {
		if err := preloadProjects(st, projectsDir, logger); err != nil {
			logger.Warn("failed to preload projects", "dir", projectsDir, "error", err)
		}
	}

	server := api.NewServer(st, logger)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutting down")
		_ = server.Shutdown()
	}()

	return server.Listen(fmt.Sprintf("%s:%s", host, port))
}

func preloadProjects(st *store.Store, dir string, logger *slog.Logger) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := dir + string(os.PathSeparator) + e.Name()
		p, err := project.Load(path)
		if err != nil {
			logger.Warn("skipping project file", "path", path, "error", err)
			continue
		}
		st.PutProject(p)
		logger.Info("project loaded", "path", path, "project_id", p.ID, "name", p.Name)
	}
	return nil
}

func runProject(cmd *cobra.Command, args []string) error {
	quiet, _ := cmd.Flags().GetBool("quiet")

	p, err := project.Load(args[0])
	if err != nil {
		return err
	}

	v := validation.New(p)
	for id, res := range v.ValidateProject() {
		for _, w := range res.Warnings {
			fmt.Fprintf(os.Stderr, "warning: %s: %s\n", id, w)
		}
		if !res.Valid() {
			for _, e := range res.Errors {
				fmt.Fprintf(os.Stderr, "error: %s: %s\n", id, e)
			}
			return fmt.Errorf("project %q failed validation", p.Name)
		}
	}

	globals := vars.New()
	prog, err := ir.Build(p, &p.Main, nil, globals)
	if err != nil {
		return err
	}

	var sink runlog.Sink = runlog.Discard
	if !quiet {
		sink = runlog.SinkFunc(func(e runlog.Entry) {
			if e.Message != runlog.SentinelComplete {
				fmt.Println(e.String())
			}
		})
	}

	ctx := runtime.NewExecutionContext(globals)
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		ctx.Stop.Stop()
	}()

	return runtime.NewExecutor(prog, p, &p.Main, ctx, sink).Run()
}

func validateProject(cmd *cobra.Command, args []string) error {
	p, err := project.Load(args[0])
	if err != nil {
		return err
	}

	v := validation.New(p)
	failed := false
	for id, res := range v.ValidateProject() {
		for _, e := range res.Errors {
			fmt.Printf("%s: %s\n", id, e)
			failed = true
		}
		for _, w := range res.Warnings {
			fmt.Printf("%s: %s\n", id, w)
		}
	}
	if failed {
		return fmt.Errorf("project %q failed validation", p.Name)
	}
	fmt.Printf("project %q is valid\n", p.Name)
	return nil
}
