// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/signalstore/signalstore-go/cmd/cmdutil"
	"github.com/signalstore/signalstore-go/internal/config"
	"github.com/signalstore/signalstore-go/internal/logging"
	"github.com/signalstore/signalstore-go/internal/objectid"
	"github.com/signalstore/signalstore-go/pkg/uow"
)

// Version is the signalstore CLI version.
var Version = "development"

var rootCmd = &cobra.Command{
	Use:          "signalstore",
	Short:        "Transactional, schema-validated object store",
	SilenceUsage: true,
	Version:      Version,
}

func init() {
	config.BindFlags(rootCmd)
	rootCmd.PersistentFlags().String("project", "default", "Project name (namespaces the document store, filesystem, and in-memory scope)")
	rootCmd.PersistentFlags().Bool("json", false, "Emit machine-readable JSON output")
	viper.BindPFlag("PROJECT", rootCmd.PersistentFlags().Lookup("project"))
	viper.BindPFlag("OUTPUT_JSON", rootCmd.PersistentFlags().Lookup("json"))
}

// newProvider builds the uow.Provider for the resolved configuration,
// mirroring pgroll's NewRoll helper (build shared dependencies once per
// invocation from viper-resolved flags).
func newProvider() (*uow.Provider, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	clock := objectid.NewMonotonicClock()
	docs := cmdutil.NewDocumentStoreClient(cfg, clock)
	fsRoot := cmdutil.NewFilesystemRoot(cfg)

	return uow.NewProvider(docs, fsRoot, clock, cfg.VersioningOn, cfg.DefaultAdapter), nil
}

// openUnitOfWork resolves the provider and the --project flag, entering a
// UoW scope the caller must Exit (typically via defer) exactly once.
func openUnitOfWork(cmd *cobra.Command) (*uow.UnitOfWork, error) {
	provider, err := newProvider()
	if err != nil {
		return nil, err
	}
	project := viper.GetString("PROJECT")
	u, err := provider.Get(project)
	if err != nil {
		return nil, err
	}
	return u.Enter(), nil
}

func outputJSON() bool {
	return viper.GetBool("OUTPUT_JSON")
}

func reporter() *logging.Reporter {
	return logging.NewReporter()
}

// Execute executes the root command.
func Execute() error {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(addCmd())
	rootCmd.AddCommand(getCmd())
	rootCmd.AddCommand(findCmd())
	rootCmd.AddCommand(removeCmd())
	rootCmd.AddCommand(restoreCmd())
	rootCmd.AddCommand(purgeCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(validateSchemaCmd())
	rootCmd.AddCommand(addSchemaCmd())

	return rootCmd.Execute()
}

func fail(cmd *cobra.Command, op string, args map[string]any, err error) error {
	res := cmdutil.Failure(op, args, 0, err)
	res.Print(outputJSON())
	return fmt.Errorf("%s: %w", op, err)
}
