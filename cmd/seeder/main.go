package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/USSTM/asset-backend/internal/auth"
	"github.com/USSTM/asset-backend/internal/config"
	"github.com/USSTM/asset-backend/internal/database"
	"github.com/USSTM/asset-backend/internal/db"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "seeder",
		Short:        "Database seeding utility for the asset backend",
		SilenceUsage: true,
	}
	root.AddCommand(newSeedCmd(), newNukeCmd(), newHashCmd())
	return root
}

func newSeedCmd() *cobra.Command {
	var file, dir string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed database from YAML files",
		Example: "  seeder seed --file seeds/dev.yaml\n" +
			"  seeder seed --dir seeds/ --dry-run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			files, err := resolveFiles(file, dir)
			if err != nil {
				return err
			}

			data, err := loadSeedData(files)
			if err != nil {
				return fmt.Errorf("failed to load seed data: %w", err)
			}
			if err := data.Validate(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if dryRun {
				data.Summary(out)
				fmt.Fprintln(out, "data structure is valid")
				return nil
			}

			cfg := config.Load()
			seedDB, err := database.New(&cfg.Database)
			if err != nil {
				return fmt.Errorf("database connection failed: %w", err)
			}
			defer seedDB.Close()

			ctx := cmd.Context()
			if err := seedDB.Migrate(ctx); err != nil {
				return err
			}

			fmt.Fprintf(out, "seeding database from %d file(s)\n", len(files))
			return seedDB.InTx(ctx, func(q *db.Queries) error {
				return applySeedData(ctx, q, data, out)
			})
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "path to a single YAML file")
	cmd.Flags().StringVar(&dir, "dir", "", "directory of YAML files")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate files without making database changes")
	cmd.MarkFlagsMutuallyExclusive("file", "dir")
	cmd.MarkFlagsOneRequired("file", "dir")
	return cmd
}

func newNukeCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "nuke",
		Short: "Delete all data and re-apply migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !force && !confirm(cmd, "warning: this will delete all data from the database. are you sure? (yes/no): ") {
				fmt.Fprintln(cmd.OutOrStdout(), "operation cancelled")
				return nil
			}

			cfg := config.Load()
			nukeDB, err := database.New(&cfg.Database)
			if err != nil {
				return fmt.Errorf("database connection failed: %w", err)
			}
			defer nukeDB.Close()

			fmt.Fprintln(cmd.OutOrStdout(), "resetting database with goose...")
			if err := database.Reset(cmd.Context(), nukeDB.Pool()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "database reset complete - ready for seeding")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "skip confirmation prompt")
	return cmd
}

// newHashCmd prints a bcrypt hash for hand-written seed SQL. The password is
// read from stdin when not given as an argument.
func newHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash [password]",
		Short: "Print the bcrypt hash of a password",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("no password given")
				}
				password = strings.TrimSpace(line)
			}

			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func confirm(cmd *cobra.Command, prompt string) bool {
	fmt.Fprint(cmd.OutOrStdout(), prompt)

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	return strings.ToLower(strings.TrimSpace(line)) == "yes"
}
