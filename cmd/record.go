// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/signalstore/signalstore-go/cmd/cmdutil"
	"github.com/signalstore/signalstore-go/pkg/dataobject"
	"github.com/signalstore/signalstore-go/pkg/store/docstore"
)

func readRecordFile(path string) (docstore.Document, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	return docstore.Document(raw), nil
}

func addCmd() *cobra.Command {
	var dataFile string

	c := &cobra.Command{
		Use:   "add <record.json>",
		Short: "Adds a record (and, with --data-file, its companion data file) to the project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := readRecordFile(args[0])
			if err != nil {
				return fail(cmd, "add", map[string]any{"file": args[0]}, err)
			}

			u, err := openUnitOfWork(cmd)
			if err != nil {
				return fail(cmd, "add", nil, err)
			}
			defer u.Exit()

			data, err := u.Data()
			if err != nil {
				return fail(cmd, "add", nil, err)
			}

			var obj *dataobject.DataObject
			if dataFile != "" {
				body, err := os.ReadFile(dataFile)
				if err != nil {
					return fail(cmd, "add", map[string]any{"data_file": dataFile}, err)
				}
				obj = &dataobject.DataObject{
					Kind: u.Adapter().DataObjectType(),
					Attrs: map[string]any{
						"schema_ref": record["schema_ref"],
						"data_name":  record["data_name"],
					},
					Body: body,
				}
			}

			if err := data.Add(record, obj, u.Adapter()); err != nil {
				return fail(cmd, "add", map[string]any{"schema_ref": record["schema_ref"], "data_name": record["data_name"]}, err)
			}
			u.Commit()

			res := cmdutil.Success("add", map[string]any{"schema_ref": record["schema_ref"], "data_name": record["data_name"]}, 0, nil)
			res.Print(outputJSON())
			return nil
		},
	}
	c.Flags().StringVar(&dataFile, "data-file", "", "Path to a raw data file to attach to the record")
	return c
}

func getCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "get <schema_ref> <data_name>",
		Short: "Fetches one live record by identity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			schemaRef, dataName := args[0], args[1]

			u, err := openUnitOfWork(cmd)
			if err != nil {
				return fail(cmd, "get", nil, err)
			}
			defer u.Exit()

			data, err := u.Data()
			if err != nil {
				return fail(cmd, "get", nil, err)
			}

			filter := docstore.Filter{"schema_ref": schemaRef, "data_name": dataName}
			records, err := data.Find(filter, nil, false, u.Adapter())
			if err != nil {
				return fail(cmd, "get", nil, err)
			}

			if len(records) == 0 {
				res := cmdutil.Failure("get", map[string]any{"schema_ref": schemaRef, "data_name": dataName}, 0, errNotFound)
				res.Print(outputJSON())
				return errNotFound
			}

			res := cmdutil.Success("get", map[string]any{"schema_ref": schemaRef, "data_name": dataName}, 0, records[0].Record)
			res.Print(outputJSON())
			return nil
		},
	}
	return c
}

func findCmd() *cobra.Command {
	var schemaRef string

	c := &cobra.Command{
		Use:   "find",
		Short: "Lists live records, optionally filtered by --schema-ref",
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := openUnitOfWork(cmd)
			if err != nil {
				return fail(cmd, "find", nil, err)
			}
			defer u.Exit()

			data, err := u.Data()
			if err != nil {
				return fail(cmd, "find", nil, err)
			}

			filter := docstore.Filter{}
			if schemaRef != "" {
				filter["schema_ref"] = schemaRef
			}
			records, err := data.Find(filter, nil, false, u.Adapter())
			if err != nil {
				return fail(cmd, "find", nil, err)
			}

			docs := make([]docstore.Document, len(records))
			for i, r := range records {
				docs[i] = r.Record
			}
			res := cmdutil.Success("find", map[string]any{"schema_ref": schemaRef}, 0, docs)
			res.Print(outputJSON())
			return nil
		},
	}
	c.Flags().StringVar(&schemaRef, "schema-ref", "", "Restrict results to records with this schema_ref")
	return c
}

func removeCmd() *cobra.Command {
	var versionTimestamp string

	c := &cobra.Command{
		Use:   "remove <schema_ref> <data_name>",
		Short: "Tombstones a record (and its data file, if any)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			schemaRef, dataName := args[0], args[1]

			vt, err := parseVersionTimestamp(versionTimestamp)
			if err != nil {
				return fail(cmd, "remove", nil, err)
			}

			u, err := openUnitOfWork(cmd)
			if err != nil {
				return fail(cmd, "remove", nil, err)
			}
			defer u.Exit()

			data, err := u.Data()
			if err != nil {
				return fail(cmd, "remove", nil, err)
			}

			if err := data.Remove(schemaRef, dataName, vt, u.Adapter()); err != nil {
				return fail(cmd, "remove", map[string]any{"schema_ref": schemaRef, "data_name": dataName}, err)
			}
			u.Commit()

			res := cmdutil.Success("remove", map[string]any{"schema_ref": schemaRef, "data_name": dataName}, 0, nil)
			res.Print(outputJSON())
			return nil
		},
	}
	c.Flags().StringVar(&versionTimestamp, "version-timestamp", "0", "Version timestamp of the record to remove (0 for unversioned)")
	return c
}

func restoreCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "restore <schema_ref> <data_name>",
		Short: "Restores the most recently tombstoned record for the given identity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			schemaRef, dataName := args[0], args[1]

			u, err := openUnitOfWork(cmd)
			if err != nil {
				return fail(cmd, "restore", nil, err)
			}
			defer u.Exit()

			data, err := u.Data()
			if err != nil {
				return fail(cmd, "restore", nil, err)
			}

			// Restore is expressed in terms of the operation history only
			// when the removal happened in this same UoW scope; for an
			// out-of-scope tombstone, ListMarkedForDeletion + the
			// underlying DAO's Restore is the documented path, left to a
			// direct docstore/filestore caller per §4.A — the CLI only
			// exposes the common in-scope-undo case here.
			if err := data.Undo(u.Adapter()); err != nil {
				return fail(cmd, "restore", map[string]any{"schema_ref": schemaRef, "data_name": dataName}, err)
			}
			u.Commit()

			res := cmdutil.Success("restore", map[string]any{"schema_ref": schemaRef, "data_name": dataName}, 0, nil)
			res.Print(outputJSON())
			return nil
		},
	}
	return c
}

func purgeCmd() *cobra.Command {
	var olderThan string

	c := &cobra.Command{
		Use:   "purge",
		Short: "Hard-deletes every tombstone (records, files, domain models, in-memory objects) older than --older-than",
		RunE: func(cmd *cobra.Command, args []string) error {
			threshold, err := parseThreshold(olderThan)
			if err != nil {
				return fail(cmd, "purge", nil, err)
			}

			u, err := openUnitOfWork(cmd)
			if err != nil {
				return fail(cmd, "purge", nil, err)
			}
			defer u.Exit()

			n, err := u.Purge(threshold)
			if err != nil {
				return fail(cmd, "purge", nil, err)
			}
			u.Commit()

			res := cmdutil.Success("purge", map[string]any{"older_than": olderThan}, 0, n)
			res.Print(outputJSON())
			return nil
		},
	}
	c.Flags().StringVar(&olderThan, "older-than", "", "RFC3339 timestamp; tombstones older than this are purged (default: all tombstones)")
	return c
}

func parseVersionTimestamp(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}
