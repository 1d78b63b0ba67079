package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/panel-extractor/internal/repository"
)

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Create every missing layout relation",
	Long: `Creates one table per layout with an identity column followed by the layout's
fields in order. Existing tables are left untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := openEnv(ctx, false)
		if err != nil {
			return err
		}
		defer e.Close()

		if err := repository.NewProvisioner(e.store, logger).Provision(ctx, e.reg); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "provisioned %d relations\n", e.reg.Len())
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check that every layout relation exists with all of its columns",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := openEnv(ctx, false)
		if err != nil {
			return err
		}
		defer e.Close()

		if err := repository.NewProvisioner(e.store, logger).Verify(ctx, e.reg); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "all %d relations match\n", e.reg.Len())
		return nil
	},
}

var layoutsCmd = &cobra.Command{
	Use:   "layouts",
	Short: "List the known panel layouts",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tRELATION\tFIELDS\tTITLE")
		for _, d := range reg.All() {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", d.ID, d.Name, d.Relation.Table, len(d.Fields), d.Title)
		}
		fmt.Fprintf(tw, "%d\t-\t-\t-\tnone of the above\n", reg.NoMatchID())
		return tw.Flush()
	},
}
