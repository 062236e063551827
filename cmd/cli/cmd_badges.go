package main

import (
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/normicyte/normicyte/internal/catalog"
	"github.com/normicyte/normicyte/internal/errors"
	"github.com/normicyte/normicyte/internal/sqlite"
	"github.com/spf13/cobra"
)

var badgesCmd = &cobra.Command{
	Use:   "badges",
	Short: "List the badge definitions in the database",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		logger := newLogger(cmd.ErrOrStderr())

		dbs, err := sqlite.NewDatabase(ctx, databaseURL, logger)
		if err != nil {
			return errors.Wrap(err, "open database", slog.String("url", databaseURL))
		}
		defer func() {
			_ = dbs.Close()
		}()

		definitions, err := catalog.NewCatalog(dbs, logger).BadgeDefinitions(ctx)
		if err != nil {
			return errors.Wrap(err, "list badge definitions")
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "ID\tNAME\tREQUIREMENT\tTHRESHOLD")
		for _, definition := range definitions {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\n",
				definition.ID, definition.NameEN, definition.RequirementType, definition.RequirementValue)
		}
		return w.Flush()
	},
}
