package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/vogtb/go-spreadsheet/packages/server"
	"github.com/vogtb/go-spreadsheet/packages/spreadsheet"
	"github.com/vogtb/go-spreadsheet/packages/storage"
	"github.com/vogtb/go-spreadsheet/packages/xlsx"
)

const shutdownTimeout = 10 * time.Second

func newEvalCmd() *cobra.Command {
	var strict, checks bool

	cmd := &cobra.Command{
		Use:   "eval [script]",
		Short: "Run a cell script from a file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, closeIn, err := openScript(cmd, args)
			if err != nil {
				return err
			}
			defer closeIn()

			sheet := spreadsheet.NewSheet(spreadsheet.WithLogger(logger), spreadsheet.WithInvariantChecks(checks))
			runner := NewRunner(sheet, cmd.OutOrStdout(), strict, logger)
			if err := runner.Run(in); err != nil {
				return err
			}
			if n := runner.Failures(); n > 0 {
				return fmt.Errorf("%d script lines failed", n)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "stop at the first failing line")
	cmd.Flags().BoolVar(&checks, "check-invariants", false, "verify sheet invariants after every change")
	return cmd
}

func openScript(cmd *cobra.Command, args []string) (io.Reader, func(), error) {
	if len(args) == 0 || args[0] == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, nil, fmt.Errorf("open script: %w", err)
	}
	return f, func() { f.Close() }, nil
}

func newExportCmd() *cobra.Command {
	var sheetName string

	cmd := &cobra.Command{
		Use:   "export <script> <out.xlsx>",
		Short: "Run a cell script and save the sheet as an Excel workbook",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, closeIn, err := openScript(cmd, args[:1])
			if err != nil {
				return err
			}
			defer closeIn()

			sheet := spreadsheet.NewSheet(spreadsheet.WithLogger(logger))
			if err := NewRunner(sheet, io.Discard, true, logger).Run(in); err != nil {
				return err
			}

			out, err := os.Create(args[1])
			if err != nil {
				return fmt.Errorf("create workbook: %w", err)
			}
			if err := xlsx.Export(sheet, out, sheetName); err != nil {
				out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return fmt.Errorf("close workbook: %w", err)
			}

			logger.Info("workbook exported", slog.String("path", args[1]), slog.Int("cells", sheet.Len()))
			return nil
		},
	}
	cmd.Flags().StringVar(&sheetName, "sheet", xlsx.DefaultSheetName, "worksheet name")
	return cmd
}

func newImportCmd() *cobra.Command {
	var (
		sheetName string
		texts     bool
	)

	cmd := &cobra.Command{
		Use:   "import <in.xlsx>",
		Short: "Load a worksheet and print its values or texts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open workbook: %w", err)
			}
			defer f.Close()

			sheet, err := xlsx.Import(f, sheetName, spreadsheet.WithLogger(logger))
			if err != nil {
				return err
			}
			if texts {
				return sheet.PrintTexts(cmd.OutOrStdout())
			}
			return sheet.PrintValues(cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&sheetName, "sheet", "", "worksheet name (default first)")
	cmd.Flags().BoolVar(&texts, "texts", false, "print cell texts instead of values")
	return cmd
}

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve sheets over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(configPath)
			if err != nil {
				return err
			}
			if cfg.LogLevel != "" && !cmd.Flags().Changed("log-level") {
				if logger, err = newLogger(cfg.LogLevel, cmd.ErrOrStderr()); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
	return cmd
}

func serve(ctx context.Context, cfg Config) error {
	var store *storage.SheetStore
	if cfg.Storage.Enabled() {
		dbCfg := storage.InMemoryConfig()
		if !cfg.Storage.InMemory {
			dbCfg = storage.DefaultConfig(cfg.Storage.Path)
		}
		dbCfg.Logger = logger

		db, err := storage.Open(dbCfg)
		if err != nil {
			return err
		}
		defer db.Close()
		store = storage.NewSheetStore(db, logger)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	gin.SetMode(gin.ReleaseMode)
	workbook := server.NewWorkbook(store, server.NewMetrics(registry), logger)
	router := server.SetupRouter(
		server.NewApiController(workbook),
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
	)

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", cfg.Listen), slog.Bool("storage", store != nil))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
