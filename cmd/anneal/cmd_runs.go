package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/hupe1980/anneal/result"
	"github.com/spf13/cobra"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs",
		Long: `List the runs recorded in the SQLite history (anneal run --db).

Examples:
  anneal runs --db runs.db
  anneal runs show 3 --db runs.db
  anneal runs delete 3 --db runs.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openHistory(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			limit, _ := cmd.Flags().GetInt("limit")
			runs, err := db.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				if runs == nil {
					runs = []result.Run{}
				}
				return json.NewEncoder(cmd.OutOrStdout()).Encode(runs)
			}

			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTARTED\tINPUT\tROWS\tK\tITERATIONS\tENERGY\tSEED")
			for _, r := range runs {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%d\t%.6f\t%d\n",
					r.ID, r.StartedAt.Local().Format(time.DateTime), r.Input, r.Rows, r.K, r.Iterations, r.Energy, r.Seed)
			}
			return tw.Flush()
		},
	}

	cmd.PersistentFlags().String("db", "", "SQLite run history path (default from config output.db)")
	cmd.Flags().Int("limit", 20, "Maximum runs to list (0 = all)")

	cmd.AddCommand(
		newRunsShowCmd(),
		newRunsDeleteCmd(),
	)

	return cmd
}

func newRunsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print the assignment of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid run id %q", args[0])
			}

			db, err := openHistory(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			assignments, err := db.Assignments(cmd.Context(), id)
			if err != nil {
				return err
			}
			if len(assignments) == 0 {
				return fmt.Errorf("run %d not found", id)
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(assignments)
			}

			names := make([]string, len(assignments))
			clusters := make([]int, len(assignments))
			for i, a := range assignments {
				names[i] = a.Name
				clusters[i] = a.Cluster
			}
			return result.WriteTSV(cmd.OutOrStdout(), names, clusters, '\t')
		},
	}
}

func newRunsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid run id %q", args[0])
			}

			db, err := openHistory(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.DeleteRun(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %d\n", id)
			return nil
		},
	}
}

func openHistory(cmd *cobra.Command) (*result.SQLiteStore, error) {
	path, _ := cmd.Flags().GetString("db")
	if path == "" {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return nil, err
		}
		path = cfg.Output.DB
	}
	if path == "" {
		return nil, fmt.Errorf("no run history configured (use --db or output.db)")
	}
	return result.OpenSQLite(cmd.Context(), path)
}
