// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/signalstore/signalstore-go/cmd/cmdutil"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initializes a project's document store, filesystem root, and built-in property models",
	RunE: func(cmd *cobra.Command, args []string) error {
		sp := reporter().Spinner("Initializing project...")

		u, err := openUnitOfWork(cmd)
		if err != nil {
			sp.Fail(err.Error())
			return err
		}
		defer u.Exit()

		if _, err := u.DomainModels(); err != nil {
			sp.Fail(err.Error())
			return err
		}
		u.Commit()

		sp.Success("Project initialized")
		res := cmdutil.Success("init", nil, 0, nil)
		res.Print(outputJSON())
		return nil
	},
}
