package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/duynguyendang/cyclopath/internal/config"
	"github.com/duynguyendang/cyclopath/pkg/extract"
	"github.com/duynguyendang/cyclopath/pkg/mcp"
	"github.com/duynguyendang/cyclopath/pkg/server"
	"github.com/duynguyendang/cyclopath/pkg/service"
)

const version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "cyclopath",
		Short:        "Turn videos, repositories, articles and notes into a learning path",
		Version:      version,
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newMCPCmd(), newGenerateCmd())
	return root
}

// bootstrap loads configuration and wires the pipeline.
func bootstrap(ctx context.Context) (config.Config, *slog.Logger, *service.PathService, func() error, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, nil, nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	svc, closeFn, err := service.Build(ctx, cfg, logger)
	if err != nil {
		return cfg, logger, nil, nil, err
	}
	return cfg, logger, svc, closeFn, nil
}

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the REST API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, logger, svc, closeFn, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			if addr != "" {
				cfg.Addr = addr
			}
			srv := server.NewServer(svc, server.Options{
				MaxDocumentBytes: cfg.MaxDocumentBytes,
				Logger:           logger,
			})
			return srv.Run(ctx, cfg.Addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides PORT)")
	return cmd
}

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the learning path tools over MCP on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, _, svc, closeFn, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			return mcp.Run(ctx, svc, cfg.MaxDocumentBytes, version)
		},
	}
}

func newGenerateCmd() *cobra.Command {
	var (
		req      extract.Request
		document string
		asJSON   bool
		asD3     bool
		outPath  string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a learning path once and print it",
		Example: `  cyclopath generate --video https://youtu.be/dQw4w9WgXcQ --repo golang/go
  cyclopath generate --document notes.pdf --json
  cyclopath generate --article https://go.dev/blog/pipelines --d3 --out path.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if outPath != "" && !asD3 {
				return fmt.Errorf("--out is only supported with --d3")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, _, svc, closeFn, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			if document != "" {
				doc, err := readDocument(document, cfg.MaxDocumentBytes)
				if err != nil {
					return err
				}
				req.Document = doc
			}
			if len(req.Requested()) == 0 {
				return fmt.Errorf("at least one of --video, --repo, --article or --document is required")
			}

			nodes, err := svc.Generate(ctx, req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case asD3 && outPath != "":
				return saveD3(out, outPath, nodes)
			case asD3:
				return writeD3(out, nodes)
			case asJSON:
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(nodes)
			default:
				return renderTable(out, nodes)
			}
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.VideoURL, "video", "", "YouTube video URL")
	f.StringVar(&req.RepoURL, "repo", "", "GitHub repository URL or owner/repo")
	f.StringVar(&req.ArticleURL, "article", "", "article URL")
	f.StringVar(&document, "document", "", "path to a PDF or image of notes")
	f.BoolVar(&asJSON, "json", false, "print the raw node array as JSON")
	f.BoolVar(&asD3, "d3", false, "print the path as a D3 graph")
	f.StringVar(&outPath, "out", "", "write the D3 graph to this file instead of stdout")
	cmd.MarkFlagsMutuallyExclusive("json", "d3")
	return cmd
}

func readDocument(path string, limit int64) (*extract.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > limit {
		return nil, fmt.Errorf("%s exceeds the %d MiB document limit", path, limit>>20)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &extract.Document{Data: data, Filename: filepath.Base(path)}, nil
}
