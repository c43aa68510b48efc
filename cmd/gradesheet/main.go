// Package main provides the CLI entry point for gradesheet-go.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"google.golang.org/api/option"

	"github.com/ukaji3/gradesheet-go/pkg/gradesheet"
)

var (
	configPath      string
	envPath         string
	credentialsPath string
	verbose         bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "gradesheet",
		Short: "Maintain course grading sheets in a Google spreadsheet",
		Long: `gradesheet-go maintains per-lab grading worksheets: group rows,
query column groups, grading outcomes and submission links.`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "gradesheet.yaml", "Course configuration file")
	rootCmd.PersistentFlags().StringVar(&envPath, "env", "", "Optional .env file with credentials settings")
	rootCmd.PersistentFlags().StringVar(&credentialsPath, "credentials", "", "Service account credentials file (default: application default credentials)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(
		ensureGroupsCmd(),
		ensureQueriesCmd(),
		writeCmd(),
		exportCmd(),
		deleteCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, args []string) error {
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil {
			return fmt.Errorf("load env file: %w", err)
		}
	}
	return nil
}

func spreadsheet(ctx context.Context) (*gradesheet.Spreadsheet, error) {
	cfg, err := gradesheet.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	cfg.Logger = logrus.StandardLogger()

	var opts []option.ClientOption
	if credentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}
	backend, err := gradesheet.NewGoogleBackend(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return gradesheet.New(backend, cfg), nil
}

func parseLab(arg string) (int, error) {
	lab, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("invalid lab number %q", arg)
	}
	return lab, nil
}

func ensureGroupsCmd() *cobra.Command {
	var linkTemplate string
	cmd := &cobra.Command{
		Use:   "ensure-groups <lab> <group>...",
		Short: "Ensure the lab worksheet exists and has a row per group",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			lab, err := parseLab(args[0])
			if err != nil {
				return err
			}
			ss, err := spreadsheet(ctx)
			if err != nil {
				return err
			}
			var link func(string) string
			if linkTemplate != "" {
				link = func(id string) string { return fmt.Sprintf(linkTemplate, id) }
			}
			sheet, err := ss.EnsureAndSetupGroups(ctx, lab, args[1:], link, true)
			if err != nil {
				return err
			}
			fmt.Printf("worksheet %q holds all %d groups\n", sheet.Title(), len(args)-1)
			return nil
		},
	}
	cmd.Flags().StringVar(&linkTemplate, "link", "", "Group link template, %s replaced by the group id")
	return cmd
}

func ensureQueriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ensure-queries <lab> <count>",
		Short: "Ensure the lab worksheet has at least count query column groups",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			lab, err := parseLab(args[0])
			if err != nil {
				return err
			}
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid count %q", args[1])
			}
			ss, err := spreadsheet(ctx)
			if err != nil {
				return err
			}
			sheet, err := ss.Sheet(ctx, lab)
			if err != nil {
				return err
			}
			return sheet.EnsureNumQueries(ctx, n)
		},
	}
}

func writeCmd() *cobra.Command {
	var (
		graderName    string
		outcome       int
		outcomeSet    bool
		submission    string
		link          string
		submittedDate string
	)
	cmd := &cobra.Command{
		Use:   "write <lab> <group> <query-index>",
		Short: "Write grading cells for one group's query",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			lab, err := parseLab(args[0])
			if err != nil {
				return err
			}
			queryIndex, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("invalid query index %q", args[2])
			}
			outcomeSet = cmd.Flags().Changed("outcome")

			ss, err := spreadsheet(ctx)
			if err != nil {
				return err
			}
			sheet, err := ss.Sheet(ctx, lab)
			if err != nil {
				return err
			}
			query, err := sheet.Query(ctx, args[1], queryIndex)
			if err != nil {
				return err
			}

			batch := ss.NewBatch()
			if submission != "" {
				reqs, err := query.RequestsWriteSubmission(ctx, submission, link)
				if err != nil {
					return err
				}
				batch.Add(sheet, reqs...)
			}
			if graderName != "" {
				reqs, err := query.RequestsWriteGrader(ctx, graderName, "")
				if err != nil {
					return err
				}
				batch.Add(sheet, reqs...)
			}
			if outcomeSet {
				reqs, err := query.RequestsWriteOutcome(ctx, outcome, "")
				if err != nil {
					return err
				}
				batch.Add(sheet, reqs...)
			}
			if submittedDate != "" {
				date, err := time.Parse("2006-01-02", submittedDate)
				if err != nil {
					return fmt.Errorf("invalid date %q", submittedDate)
				}
				reqs, err := sheet.RequestWriteLastSubmissionDate(ctx, args[1], date)
				if err != nil {
					return err
				}
				batch.Add(sheet, reqs...)
			}
			if batch.Empty() {
				fmt.Println("nothing to write")
				return nil
			}
			_, err = batch.Flush(ctx)
			return err
		},
	}
	cmd.Flags().StringVar(&submission, "submission", "", "Submission cell text")
	cmd.Flags().StringVar(&link, "link", "", "Hyperlink for the submission cell")
	cmd.Flags().StringVar(&graderName, "grader", "", "Grader cell text")
	cmd.Flags().IntVar(&outcome, "outcome", 0, "Grading outcome, written through the configured outcome coding")
	cmd.Flags().StringVar(&submittedDate, "submitted", "", "Last submission date (YYYY-MM-DD)")
	return cmd
}

func exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <lab> <output.xlsx>",
		Short: "Write an offline xlsx snapshot of the lab's grading sheet",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			lab, err := parseLab(args[0])
			if err != nil {
				return err
			}
			ss, err := spreadsheet(ctx)
			if err != nil {
				return err
			}
			return ss.Export(ctx, lab, args[1])
		},
	}
}

func deleteCmd() *cobra.Command {
	var missingOK bool
	cmd := &cobra.Command{
		Use:   "delete <lab>",
		Short: "Delete the lab's worksheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			lab, err := parseLab(args[0])
			if err != nil {
				return err
			}
			ss, err := spreadsheet(ctx)
			if err != nil {
				return err
			}
			return ss.Delete(ctx, lab, missingOK)
		},
	}
	cmd.Flags().BoolVar(&missingOK, "missing-ok", false, "Succeed when the worksheet does not exist")
	return cmd
}
