package main

import (
	"log/slog"
	"os"

	"github.com/normicyte/normicyte/internal/catalog"
	"github.com/normicyte/normicyte/internal/errors"
	"github.com/normicyte/normicyte/internal/sqlite"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed [files...]",
	Short: "Import YAML catalog files into the database",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := newLogger(cmd.OutOrStdout())

		dbs, err := sqlite.NewDatabase(ctx, databaseURL, logger)
		if err != nil {
			return errors.Wrap(err, "open database", slog.String("url", databaseURL))
		}
		defer func() {
			_ = dbs.Close()
		}()

		seeder := catalog.NewSeeder(dbs, logger)
		for _, path := range args {
			file, err := os.Open(path)
			if err != nil {
				return errors.Wrap(err, "open catalog file", slog.String("path", path))
			}
			err = seeder.Import(ctx, file)
			_ = file.Close()
			if err != nil {
				return errors.Wrap(err, "import catalog file", slog.String("path", path))
			}
		}
		return nil
	},
}
