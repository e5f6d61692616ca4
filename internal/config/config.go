// SPDX-License-Identifier: Apache-2.0

// Package config resolves signalstore's runtime configuration the way
// pgroll's cmd/root.go resolves Postgres connection settings: flags bound
// onto viper keys, environment variables under a fixed prefix, an optional
// YAML config file, and hard-coded defaults, in that precedence order.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"sigs.k8s.io/yaml"

	"github.com/signalstore/signalstore-go/pkg/dataobject"
)

const envPrefix = "SIGNALSTORE"

// Config is the resolved set of values every subcommand needs to build a
// uow.Provider.
type Config struct {
	// DocumentStoreURL is a postgres:// connection string, or empty to use
	// the in-process map-backed document store.
	DocumentStoreURL string `json:"document_store_url"`
	// FilesystemRoot is the directory under which every project gets its
	// own subdirectory (uow.Provider's FilesystemRoot).
	FilesystemRoot string `json:"filesystem_root"`
	// DefaultAdapter names the file-format adapter new records use when
	// none is specified explicitly.
	DefaultAdapter dataobject.DefaultFileType `json:"default_adapter"`
	// VersioningOn enables append-only multi-version records (§4.F).
	VersioningOn bool `json:"versioning_on"`
	// RetentionWindow is resolved like the other fields, but no subcommand
	// reads it: `purge` takes its threshold only from --older-than.
	RetentionWindow time.Duration `json:"retention_window"`
}

func defaults() Config {
	return Config{
		FilesystemRoot:  filepath.Join(os.Getenv("HOME"), ".signalstore", "data"),
		DefaultAdapter:  dataobject.FileTypeSelfDescribingArray,
		VersioningOn:    false,
		RetentionWindow: 30 * 24 * time.Hour,
	}
}

// BindFlags registers the persistent flags root.go exposes and binds each
// to its viper key, the same pattern as pgroll's cmd/flags.PgConnectionFlags.
func BindFlags(cmd *cobra.Command) {
	d := defaults()

	cmd.PersistentFlags().String("document-store-url", "", "Postgres connection string for the document store (empty uses an in-memory store)")
	cmd.PersistentFlags().String("filesystem-root", d.FilesystemRoot, "Root directory under which every project gets its own subdirectory")
	cmd.PersistentFlags().String("default-adapter", string(d.DefaultAdapter), "Default file-format adapter (self_describing_array | chunked_array_directory)")
	cmd.PersistentFlags().Bool("versioning", d.VersioningOn, "Stamp added records with a version_timestamp so several versions of one identity can coexist (off: re-adding a live identity fails)")
	cmd.PersistentFlags().Duration("retention-window", d.RetentionWindow, "Tombstone retention window (stored in the configuration; purge uses only --older-than)")
	cmd.PersistentFlags().String("config", "", "Path to a YAML config file (default $HOME/.signalstore/config.yaml)")

	viper.BindPFlag("DOCUMENT_STORE_URL", cmd.PersistentFlags().Lookup("document-store-url"))
	viper.BindPFlag("FILESYSTEM_ROOT", cmd.PersistentFlags().Lookup("filesystem-root"))
	viper.BindPFlag("DEFAULT_ADAPTER", cmd.PersistentFlags().Lookup("default-adapter"))
	viper.BindPFlag("VERSIONING_ON", cmd.PersistentFlags().Lookup("versioning"))
	viper.BindPFlag("RETENTION_WINDOW", cmd.PersistentFlags().Lookup("retention-window"))
	viper.BindPFlag("CONFIG", cmd.PersistentFlags().Lookup("config"))
}

// Load resolves the final configuration: defaults, overlaid by the config
// file (if present), overlaid by environment/flags already bound into
// viper by BindFlags.
func Load() (Config, error) {
	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()

	cfg := defaults()

	path := viper.GetString("CONFIG")
	if path == "" {
		path = filepath.Join(os.Getenv("HOME"), ".signalstore", "config.yaml")
	}
	if body, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(body, &cfg); err != nil {
			return Config{}, err
		}
	} else if !os.IsNotExist(err) {
		return Config{}, err
	}

	if viper.IsSet("DOCUMENT_STORE_URL") {
		cfg.DocumentStoreURL = viper.GetString("DOCUMENT_STORE_URL")
	}
	if viper.IsSet("FILESYSTEM_ROOT") {
		cfg.FilesystemRoot = viper.GetString("FILESYSTEM_ROOT")
	}
	if viper.IsSet("DEFAULT_ADAPTER") {
		cfg.DefaultAdapter = dataobject.DefaultFileType(viper.GetString("DEFAULT_ADAPTER"))
	}
	if viper.IsSet("VERSIONING_ON") {
		cfg.VersioningOn = viper.GetBool("VERSIONING_ON")
	}
	if viper.IsSet("RETENTION_WINDOW") {
		cfg.RetentionWindow = viper.GetDuration("RETENTION_WINDOW")
	}

	return cfg, nil
}
