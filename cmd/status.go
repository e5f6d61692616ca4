// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/signalstore/signalstore-go/cmd/cmdutil"
)

type projectStatus struct {
	Project               string `json:"project"`
	RecordCount           int    `json:"record_count"`
	TombstonedRecordCount int    `json:"tombstoned_record_count"`
	TombstonedSchemaCount int    `json:"tombstoned_schema_count"`
	OrphanCount           int    `json:"orphan_count"`
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Summarizes a project's record and orphan counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := openUnitOfWork(cmd)
			if err != nil {
				return fail(cmd, "status", nil, err)
			}
			defer u.Exit()

			data, err := u.Data()
			if err != nil {
				return fail(cmd, "status", nil, err)
			}
			models, err := u.DomainModels()
			if err != nil {
				return fail(cmd, "status", nil, err)
			}

			records, err := data.Find(nil, nil, false, u.Adapter())
			if err != nil {
				return fail(cmd, "status", nil, err)
			}
			tombstonedRecords, err := data.ListMarkedForDeletion(nil, u.Adapter())
			if err != nil {
				return fail(cmd, "status", nil, err)
			}
			orphans, err := data.FindOrphans(u.Adapter())
			if err != nil {
				return fail(cmd, "status", nil, err)
			}
			tombstonedSchemas, err := models.ListMarkedForDeletion(nil)
			if err != nil {
				return fail(cmd, "status", nil, err)
			}

			st := projectStatus{
				Project:               viper.GetString("PROJECT"),
				RecordCount:           len(records),
				TombstonedRecordCount: len(tombstonedRecords),
				TombstonedSchemaCount: len(tombstonedSchemas),
				OrphanCount:           len(orphans),
			}

			res := cmdutil.Success("status", nil, 0, st)
			res.Print(outputJSON())
			if !outputJSON() {
				reporter().Table([][]string{
					{"project", "records", "tombstoned records", "tombstoned schemas", "orphans"},
					{st.Project, strconv.Itoa(st.RecordCount), strconv.Itoa(st.TombstonedRecordCount), strconv.Itoa(st.TombstonedSchemaCount), strconv.Itoa(st.OrphanCount)},
				})
			}
			return nil
		},
	}
}
