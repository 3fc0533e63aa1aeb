package main

import (
	"fmt"
	"io"
	"log"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zen-systems/codefactory/pkg/adapter"
	"github.com/zen-systems/codefactory/pkg/evidence"
	"github.com/zen-systems/codefactory/pkg/pipeline"
	"github.com/zen-systems/codefactory/pkg/testrunner"
	"github.com/zen-systems/codefactory/pkg/worker"
	"github.com/zen-systems/codefactory/pkg/workspace"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [request]",
		Short: "Run the pipeline on a build request",
		Long: `Runs every stage on the request (from the argument, or stdin when omitted),
extracts the generated files into the workspace and executes the generated
tests. Every flag can also be set with CODEFACTORY_<FLAG>, for example
CODEFACTORY_WORKSPACE or CODEFACTORY_MAX_REVIEW.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := bindFlags(cmd.Flags())
			if err != nil {
				return err
			}

			input := strings.Join(args, " ")
			if strings.TrimSpace(input) == "" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read stdin: %w", err)
				}
				input = string(data)
			}

			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			adapters, err := createAdapters(cfg)
			if err != nil {
				return fmt.Errorf("failed to create adapters: %w", err)
			}

			m, err := loadManifest(v.GetString("manifest"))
			if err != nil {
				return err
			}
			if flag := v.GetString("adapter"); flag != "" || m.DefaultAdapter == "" {
				name, err := defaultAdapter(flag, cfg, adapters)
				if err != nil {
					return fmt.Errorf("configuration error: %w", err)
				}
				m.DefaultAdapter = name
			}
			if model := v.GetString("model"); model != "" {
				m.DefaultModel = model
			}
			if n := v.GetInt("max-review"); n > 0 {
				m.MaxReviewIterations = n
			}

			p, err := pipeline.Build(m, adapters, cfg.Policy)
			if err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}

			runner := newTestRunner(v.GetString("python"), v.GetDuration("test-timeout"), v.GetBool("no-pytest"))
			jsonOut := v.GetBool("json")
			result := pipeline.Run(cmd.Context(), p, pipeline.RunOptions{
				Input:         input,
				WorkspacePath: v.GetString("workspace"),
				EvidenceDir:   v.GetString("evidence"),
				SkipTests:     v.GetBool("no-tests"),
				TestRunner:    runner,
				Logger:        log.Printf,
				Progress: func(stage pipeline.StageID, state pipeline.StageState) {
					if !jsonOut {
						fmt.Fprintf(cmd.ErrOrStderr(), "%s\n", formatProgress(stage, state))
					}
				},
			})

			if jsonOut {
				if err := printJSON(cmd.OutOrStdout(), result); err != nil {
					return err
				}
			} else {
				printRunResult(cmd.OutOrStdout(), result)
			}
			if result.Status != pipeline.StatusSuccess {
				return fmt.Errorf("%s", result.Error)
			}
			return nil
		},
	}

	cmd.Flags().String("workspace", pipeline.DefaultWorkspace, "directory generated files are written to")
	cmd.Flags().String("manifest", "", "pipeline manifest path (default: built-in seven stages)")
	cmd.Flags().String("evidence", "", "evidence output base directory (disabled when empty)")
	cmd.Flags().String("adapter", "", "adapter used by stages that do not name one")
	cmd.Flags().String("model", "", "model used by stages that do not name one")
	cmd.Flags().Int("max-review", 0, "maximum review rejections that trigger another coding pass")
	cmd.Flags().Bool("no-tests", false, "skip running generated tests")
	cmd.Flags().Bool("json", false, "print the run result as JSON")
	addTestRunnerFlags(cmd)

	return cmd
}

func testCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test [workspace]",
		Short: "Run the Python tests in a workspace",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := bindFlags(cmd.Flags())
			if err != nil {
				return err
			}
			root := pipeline.DefaultWorkspace
			if len(args) == 1 {
				root = args[0]
			}

			runner := newTestRunner(v.GetString("python"), v.GetDuration("test-timeout"), v.GetBool("no-pytest"))
			runner.Logger = log.Printf
			report := runner.RunAll(cmd.Context(), root)

			if v.GetBool("json") {
				return printJSON(cmd.OutOrStdout(), report)
			}
			printTestReport(cmd.OutOrStdout(), report)
			if report.Status == testrunner.StatusFailed || report.Status == testrunner.StatusError {
				return fmt.Errorf("tests %s", report.Status)
			}
			return nil
		},
	}

	cmd.Flags().Bool("json", false, "print the report as JSON")
	addTestRunnerFlags(cmd)
	return cmd
}

func extractCmd() *cobra.Command {
	var transcriptFile string
	var workspaceDir string

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Write the files contained in a saved transcript",
		Long:  "Replays file extraction from a transcript.json written to a run's evidence directory.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if transcriptFile == "" {
				return fmt.Errorf("--transcript is required")
			}
			messages, err := evidence.ReadTranscript(transcriptFile)
			if err != nil {
				return err
			}
			n, err := workspace.Extract(messages, workspaceDir, log.Printf)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Extracted %d files to %s\n", n, workspaceDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&transcriptFile, "transcript", "", "path to transcript.json (required)")
	cmd.Flags().StringVar(&workspaceDir, "workspace", pipeline.DefaultWorkspace, "directory to write files to")
	return cmd
}

func stagesCmd() *cobra.Command {
	var manifestFile string

	cmd := &cobra.Command{
		Use:   "stages",
		Short: "List the pipeline stages",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadManifest(manifestFile)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Pipeline: %s\n\n", m.Name)
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "#\tSTAGE\tADAPTER\tMODEL\tTEMPERATURE")
			for i, s := range m.Stages {
				temp := worker.DefaultTemperature(string(s.ID))
				if s.Temperature != nil {
					temp = *s.Temperature
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.1f\n", i+1, s.ID,
					orDash(firstSet(s.Adapter, m.DefaultAdapter)), orDash(firstSet(s.Model, m.DefaultModel)), temp)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			retry := m.RetryWith
			if len(retry) == 0 {
				retry = []pipeline.StageID{pipeline.StageCoding}
			}
			maxReview := m.MaxReviewIterations
			if maxReview <= 0 {
				maxReview = pipeline.DefaultMaxReviewIterations
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nOn %s: re-run %v (up to %d times)\n", pipeline.FixRequiredMarker, retry, maxReview)
			return nil
		},
	}

	cmd.Flags().StringVar(&manifestFile, "manifest", "", "pipeline manifest path (default: built-in)")
	return cmd
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [manifest]",
		Short: "Validate a pipeline manifest",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			m, err := loadManifest(path)
			if err != nil {
				return err
			}

			// Build against mock adapters so adapter names are checked
			// without needing credentials.
			adapters := map[string]adapter.Adapter{}
			for _, s := range m.Stages {
				adapters[firstSet(s.Adapter, m.DefaultAdapter, "mock")] = adapter.NewMockAdapter()
			}
			check := *m
			if check.DefaultAdapter == "" {
				check.DefaultAdapter = "mock"
			}
			if _, err := pipeline.Build(&check, adapters, nil); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Manifest %s is valid (%d stages)\n", m.Name, len(m.Stages))
			return nil
		},
	}
}
