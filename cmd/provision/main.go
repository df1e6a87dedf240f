package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/TheIdeem/supabase-mcp-server/internal/emitter"
	"github.com/TheIdeem/supabase-mcp-server/internal/logger"
	"github.com/TheIdeem/supabase-mcp-server/internal/notify"
	"github.com/TheIdeem/supabase-mcp-server/internal/schema"
	"github.com/TheIdeem/supabase-mcp-server/internal/storage"
	"github.com/TheIdeem/supabase-mcp-server/pkg/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	outputPath string
	debug      bool
	tableNames []string
)

// defaultTables are sampled by the tables command.
var defaultTables = []string{
	"users",
	"extractions",
	"profiles",
	"ai_suggestions",
	"user_profiles",
	"user_searches",
	"search_configurations",
	"search_results",
}

// Replaced in tests.
var (
	newLogger   = logger.New
	openStorage = func(cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
		if cfg.Database.Enabled() {
			return storage.NewPostgresStorage(storage.DatabaseConfig{
				Host:     cfg.Database.Host,
				Port:     cfg.Database.Port,
				User:     cfg.Database.User,
				Password: cfg.Database.Password,
				DBName:   cfg.Database.DBName,
				SSLMode:  cfg.Database.SSLMode,
				Schema:   cfg.Supabase.Schema,
			}, cfg.Probe.Timeout, logger)
		}
		return storage.NewRESTStorage(storage.RESTConfig{
			URL:        cfg.Supabase.BaseURL(),
			ServiceKey: cfg.Supabase.ServiceRoleKey,
			Schema:     cfg.Supabase.Schema,
		}, logger)
	}
	newNotifier = func(cfg config.TelegramConfig, logger *zap.Logger) (notify.Notifier, error) {
		return notify.NewTelegram(cfg.Token, cfg.ChatID, logger)
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "provision",
		Short: "Check and emit the AI search helper schema for a Supabase project",
		Long: `Checks whether the ai_suggestions and user_searches tables exist, prints the
SQL needed to create the missing ones and always writes the complete schema
to a SQL file to run in the Supabase SQL editor.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         runProvision,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultEnvFile, "config file (.env, .yaml, .json, .toml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "path of the generated SQL file (default create_ai_helper_tables.sql)")

	sqlCmd := &cobra.Command{
		Use:   "sql",
		Short: "Print the complete schema SQL without contacting Supabase",
		Args:  cobra.NoArgs,
		RunE:  runSQL,
	}
	sqlCmd.Flags().StringVarP(&outputPath, "output", "o", "", "write the SQL to this file instead of stdout")

	tablesCmd := &cobra.Command{
		Use:   "tables",
		Short: "List which tables exist and the columns of their first row",
		Args:  cobra.NoArgs,
		RunE:  runTables,
	}
	tablesCmd.Flags().StringSliceVarP(&tableNames, "table", "t", defaultTables, "tables to inspect")

	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Check that the AI search helper tables exist",
		Args:  cobra.NoArgs,
		RunE:  runVerify,
	}

	rootCmd.AddCommand(sqlCmd, tablesCmd, verifyCmd)
	return rootCmd
}

// setup loads and validates the configuration, then opens the storage.
// Nothing remote is contacted when the configuration is invalid.
func setup(cmd *cobra.Command) (*config.Config, storage.Storage, *zap.Logger, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, err
	}
	if cmd.Flags().Changed("output") {
		cfg.Output.Path = outputPath
	}

	log, err := newLogger(debug)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	if cfg.Database.Enabled() {
		fmt.Fprintf(cmd.OutOrStdout(), "Connecting to database %s at %s:%d\n", cfg.Database.DBName, cfg.Database.Host, cfg.Database.Port)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Connecting to Supabase at %s\n", cfg.Supabase.BaseURL())
	}
	store, err := openStorage(cfg, log)
	if err != nil {
		log.Error("Failed to initialize storage", zap.Error(err))
		_ = log.Sync()
		return nil, nil, nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return cfg, store, log, nil
}

func runProvision(cmd *cobra.Command, args []string) error {
	cfg, store, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()
	defer store.Close()

	ctx := cmd.Context()
	em := emitter.New(store, schema.Default(), cmd.OutOrStdout(), cfg.Output.Path, log)
	report, err := em.Run(ctx)
	if err != nil {
		log.Error("Failed to write schema file", zap.Error(err), zap.String("path", cfg.Output.Path))
		return err
	}

	if cfg.Telegram.Enabled() {
		sendReport(ctx, cfg.Telegram, report, log)
	}
	return nil
}

// sendReport never fails the run.
func sendReport(ctx context.Context, cfg config.TelegramConfig, report *emitter.Report, log *zap.Logger) {
	n, err := newNotifier(cfg, log)
	if err != nil {
		log.Warn("Failed to create notifier", zap.Error(err))
		return
	}
	if err := n.Notify(ctx, report.Summary()); err != nil {
		log.Warn("Failed to send report", zap.Error(err), zap.Int64("chat_id", cfg.ChatID))
	}
}

func runSQL(cmd *cobra.Command, args []string) error {
	def := schema.Default()
	if err := def.Validate(); err != nil {
		return fmt.Errorf("invalid schema definition: %w", err)
	}
	sql := schema.Render(def)

	if outputPath == "" {
		_, err := fmt.Fprint(cmd.OutOrStdout(), sql)
		return err
	}
	if err := os.WriteFile(outputPath, []byte(sql), 0644); err != nil {
		return fmt.Errorf("error writing %s: %w", outputPath, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "SQL file written: %s\n", outputPath)
	return nil
}

func runTables(cmd *cobra.Command, args []string) error {
	_, store, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()
	defer store.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Checking tables:")
	for _, table := range tableNames {
		sample, err := store.Sample(cmd.Context(), table)
		if err != nil {
			log.Debug("Sample failed", zap.String("table", table), zap.Error(err))
			fmt.Fprintf(out, "- %s: does not exist or error: %v\n", table, err)
			continue
		}
		fmt.Fprintf(out, "- %s: exists\n", table)
		if sample.Empty {
			fmt.Fprintln(out, "    table is empty")
		} else {
			fmt.Fprintf(out, "    columns: %s\n", strings.Join(sample.Columns, ", "))
		}
	}
	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	_, store, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()
	defer store.Close()

	out := cmd.OutOrStdout()
	var missing []string
	for _, r := range emitter.New(store, schema.Default(), out, "", log).Check(cmd.Context()) {
		if r.Err != nil && r.Status != emitter.StatusMissing {
			fmt.Fprintf(out, "%s: %s (%v)\n", r.Table, r.Status, r.Err)
		} else {
			fmt.Fprintf(out, "%s: %s\n", r.Table, r.Status)
		}
		if r.Status != emitter.StatusExists {
			missing = append(missing, r.Table)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("tables not confirmed: %s", strings.Join(missing, ", "))
	}
	return nil
}
