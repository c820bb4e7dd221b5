package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/smccd/doorcard-data/pkg/configuration"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "doorcard-data",
		Short:         "One-shot migration of legacy doorcard extracts into the new schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newImportCmd())
	cmd.AddCommand(newMigrateCmd())
	return cmd
}

func Execute() {
	conf := configuration.Use()
	defer conf.Unload()
	if err := newRootCmd().Execute(); err != nil {
		code := exitCode(err)
		fmt.Fprintln(os.Stderr, err.Error())
		conf.Unload()
		os.Exit(code)
	}
}
