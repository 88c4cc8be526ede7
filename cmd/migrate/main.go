package main

import (
	"context"
	"os"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	defcache "github.com/ahmedbally/astudio-task/internal/infrastructure/cache"
	"github.com/ahmedbally/astudio-task/internal/infrastructure/config"
	"github.com/ahmedbally/astudio-task/internal/infrastructure/database"
	"github.com/ahmedbally/astudio-task/internal/infrastructure/logger"
	"github.com/ahmedbally/astudio-task/internal/repositories/sqlstore"
	"github.com/ahmedbally/astudio-task/internal/services"
	"github.com/ahmedbally/astudio-task/internal/services/eav"
)

var (
	envFlag  string
	seedFile string
	conn     database.Connection
	log      *zap.SugaredLogger
)

var rootCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Database migration tool for the attribute service",
	Long: `Database migration tool for the attribute service.
Manages PostgreSQL and SQLite schema migrations using golang-migrate.`,
	PersistentPreRunE: setupDatabase,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if conn != nil {
			conn.Close()
		}
		logger.Sync()
	},
	SilenceUsage: true,
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE:  runUp,
}

var downCmd = &cobra.Command{
	Use:   "down [steps]",
	Short: "Rollback migrations",
	Long:  `Rollback the specified number of migrations (default: 1).`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDown,
}

var gotoCmd = &cobra.Command{
	Use:   "goto <version>",
	Short: "Migrate to a specific version",
	Args:  cobra.ExactArgs(1),
	RunE:  runGoto,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show current migration version",
	RunE:  runVersion,
}

var forceCmd = &cobra.Command{
	Use:   "force <version>",
	Short: "Force set migration version (use with caution)",
	Long:  `Force set the migration version without running migrations. Use with caution.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runForce,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the attribute definitions listed in a seed file",
	Long:  `Create the attribute definitions listed in a YAML seed file. Existing names are skipped.`,
	RunE:  runSeed,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&envFlag, "env", "e", "dev", "Environment to use (dev, test, prod)")
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "seeds/attributes.yaml", "Seed file to load")

	rootCmd.AddCommand(upCmd, downCmd, gotoCmd, versionCmd, forceCmd, seedCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupDatabase(cmd *cobra.Command, args []string) error {
	if err := config.InitConfig(envFlag); err != nil {
		return errors.Wrap(err, "failed to initialize config")
	}

	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	if err := logger.Initialize(cfg.Log.JSON, cfg.Log.Level); err != nil {
		return err
	}
	log = logger.ComponentLogger("migrate")

	conn, err = database.Open(&cfg.Database)
	if err != nil {
		return errors.Wrap(err, "failed to connect to database")
	}

	log.Infow("connected to database", "env", envFlag, logger.FieldDriver, conn.Driver())
	return nil
}

func parseVersion(arg string) (uint, error) {
	v, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid version %q", arg)
	}
	return uint(v), nil
}

func runUp(cmd *cobra.Command, args []string) error {
	m, err := database.NewMigrator(conn)
	if err != nil {
		return err
	}

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		log.Infow("no migrations to apply")
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "migration up failed")
	}
	log.Infow("migration up completed")
	return nil
}

func runDown(cmd *cobra.Command, args []string) error {
	steps := 1
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return errors.Newf("invalid step count %q", args[0])
		}
		steps = n
	}

	m, err := database.NewMigrator(conn)
	if err != nil {
		return err
	}

	err = m.Steps(-steps)
	if errors.Is(err, migrate.ErrNoChange) {
		log.Infow("no migrations to rollback")
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "migration down failed")
	}
	log.Infow("migration down completed", logger.FieldCount, steps)
	return nil
}

func runGoto(cmd *cobra.Command, args []string) error {
	version, err := parseVersion(args[0])
	if err != nil {
		return err
	}

	m, err := database.NewMigrator(conn)
	if err != nil {
		return err
	}

	err = m.Migrate(version)
	if errors.Is(err, migrate.ErrNoChange) {
		log.Infow("already at version", "version", version)
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "migration goto failed")
	}
	log.Infow("migration goto completed", "version", version)
	return nil
}

func runVersion(cmd *cobra.Command, args []string) error {
	m, err := database.NewMigrator(conn)
	if err != nil {
		return err
	}

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		log.Infow("no migrations applied yet")
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "failed to get version")
	}

	if dirty {
		log.Warnw("current version is dirty, a migration may have failed", "version", version)
		return nil
	}
	log.Infow("current version", "version", version)
	return nil
}

func runForce(cmd *cobra.Command, args []string) error {
	version, err := strconv.Atoi(args[0])
	if err != nil {
		return errors.Wrapf(err, "invalid version %q", args[0])
	}

	m, err := database.NewMigrator(conn)
	if err != nil {
		return err
	}

	if err := m.Force(version); err != nil {
		return errors.Wrap(err, "migration force failed")
	}
	log.Infow("migration forced", "version", version)
	return nil
}

// runSeed creates the seed definitions. On PostgreSQL running servers are
// notified; otherwise they pick them up when their snapshot expires.
func runSeed(cmd *cobra.Command, args []string) error {
	defs, err := services.LoadDefinitionSeedFile(seedFile)
	if err != nil {
		return err
	}

	dialect, err := sqlstore.ParseDialect(conn.Driver())
	if err != nil {
		return err
	}

	repo := sqlstore.NewDefinitionRepository(conn.SQL(), dialect)
	var notify services.ChangeNotifier
	if conn.Driver() == config.DriverPostgres {
		notify = func(ctx context.Context, attribute string) error {
			return defcache.NotifyDefinitionsChanged(ctx, conn.SQL(), attribute)
		}
	}
	svc := services.NewDefinitionService(repo, eav.NewRegistry(repo, nil), notify)

	created, err := services.SeedDefinitions(context.Background(), svc, defs)
	if err != nil {
		return err
	}
	log.Infow("seed completed", "file", seedFile, logger.FieldCount, created, "skipped", len(defs)-created)
	return nil
}
