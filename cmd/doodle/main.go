package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	doodle "github.com/CatchTheTornado/agent-doodle"
	"github.com/CatchTheTornado/agent-doodle/definition"
	"github.com/CatchTheTornado/agent-doodle/program"
	"github.com/CatchTheTornado/agent-doodle/runner"
	"github.com/CatchTheTornado/agent-doodle/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := configFromEnv()

	rootCmd := &cobra.Command{
		Use:           "doodle",
		Short:         "Agent flow orchestration",
		Long:          "Doodle validates, compiles and runs agent flows defined in program files.",
		SilenceUsage:  true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfg.Store, "store", cfg.Store, `run store: "memory", "sqlite:<path>" or a redis:// URL (DOODLE_STORE)`)
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (DOODLE_LOG_LEVEL)")
	flags.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: text or json (DOODLE_LOG_FORMAT)")

	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newCompileCommand())
	rootCmd.AddCommand(newRunCommand(&cfg))
	rootCmd.AddCommand(newRunsCommand(&cfg))
	return rootCmd
}

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <program>",
		Short: "Check a program file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := program.Load(args[0])
			if err != nil {
				return err
			}
			if err := p.Validate(); err != nil {
				printErrors(cmd.OutOrStdout(), err)
				return errors.New("program is invalid")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d agents, %d flows\n", len(p.Agents), len(p.Flows))
			return nil
		},
	}
}

func newCompileCommand() *cobra.Command {
	var flowCode string

	cmd := &cobra.Command{
		Use:   "compile <program>",
		Short: "Print the executable definition of a flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := program.Load(args[0])
			if err != nil {
				return err
			}
			f, err := pickFlow(p, flowCode)
			if err != nil {
				return err
			}
			data, err := definition.MarshalIndent(f.Definition())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}

	cmd.Flags().StringVarP(&flowCode, "flow", "f", "", "flow code (default: the program's default flow)")
	return cmd
}

func newRunCommand(cfg *config) *cobra.Command {
	var (
		flowCode string
		input    string
		vars     []string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "run <program>",
		Short: "Run a flow and print its output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := program.Load(args[0])
			if err != nil {
				return err
			}
			inputs, err := parseVars(vars)
			if err != nil {
				return err
			}

			logger, err := cfg.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			store, closeStore, err := openStore(cfg.Store)
			if err != nil {
				return err
			}
			defer closeStore()

			d, err := doodle.New(p, func(o *doodle.Options) {
				o.EngineConfig = cfg.engineConfig()
				o.JudgeModel = cfg.JudgeModel
				o.Store = store
				o.Timeout = cfg.Timeout
				o.Logger = logger
			})
			if err != nil {
				return err
			}

			run, err := d.Run(cmd.Context(), runner.Request{FlowCode: flowCode, Input: input, Inputs: inputs})
			if run == nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if encErr := enc.Encode(run); encErr != nil {
					return encErr
				}
				return err
			}
			if err != nil {
				fmt.Fprintf(out, "run %s %s at %s\n", run.ID, run.Status, run.FailedAt)
				return err
			}
			if !run.Converged {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: optimize steps did not converge: %v\n", run.Unconverged)
			}
			fmt.Fprintln(out, formatOutput(run.Output))
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&flowCode, "flow", "f", "", "flow code (default: the program's default flow)")
	flags.StringVarP(&input, "input", "i", "", "text handed to the first step")
	flags.StringArrayVar(&vars, "var", nil, "input variable as name=value (repeatable)")
	flags.BoolVar(&asJSON, "json", false, "print the whole run record as JSON")
	flags.StringVar(&cfg.JudgeModel, "judge-model", cfg.JudgeModel, "model used for judgments (DOODLE_JUDGE_MODEL)")
	flags.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "run timeout (DOODLE_TIMEOUT)")
	flags.IntVar(&cfg.MaxInvocations, "max-invocations", cfg.MaxInvocations, "agent and judge invocation budget, 0 for unlimited (DOODLE_MAX_INVOCATIONS)")
	flags.IntVar(&cfg.MaxIterations, "max-iterations", cfg.MaxIterations, "default optimize iterations (DOODLE_MAX_ITERATIONS)")
	flags.BoolVar(&cfg.FailUnconverge, "fail-on-non-convergence", cfg.FailUnconverge, "fail optimize steps that do not converge (DOODLE_FAIL_ON_NON_CONVERGENCE)")
	return cmd
}

func newRunsCommand(cfg *config) *cobra.Command {
	var filter session.Filter
	var status string

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := openStore(cfg.Store)
			if err != nil {
				return err
			}
			defer closeStore()

			filter.Status = session.Status(status)
			runs, err := store.List(cmd.Context(), filter)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tFLOW\tSTATUS\tSTARTED\tINVOCATIONS")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", r.ID, r.FlowCode, r.Status, r.StartedAt.Format("2006-01-02 15:04:05"), r.Invocations)
			}
			return w.Flush()
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&filter.FlowCode, "flow", "f", "", "only runs of this flow")
	flags.StringVar(&status, "status", "", "only runs with this status")
	flags.IntVar(&filter.Limit, "limit", 20, "maximum number of runs, 0 for all")
	return cmd
}

func pickFlow(p program.Program, code string) (program.Flow, error) {
	if code == "" {
		if f, ok := p.Default(); ok {
			return f, nil
		}
		return program.Flow{}, fmt.Errorf("%w: program has no flows", program.ErrFlowNotFound)
	}
	if f, ok := p.Flow(code); ok {
		return f, nil
	}
	return program.Flow{}, fmt.Errorf("%w: %q", program.ErrFlowNotFound, code)
}

func parseVars(vars []string) (map[string]any, error) {
	out := make(map[string]any, len(vars))
	for _, v := range vars {
		name, value, ok := strings.Cut(v, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --var %q, expected name=value", v)
		}
		out[name] = value
	}
	return out, nil
}

func formatOutput(out any) string {
	if s, ok := out.(string); ok {
		return s
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Sprint(out)
	}
	return string(data)
}

func printErrors(w io.Writer, err error) {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			fmt.Fprintf(w, "- %v\n", e)
		}
		return
	}
	fmt.Fprintf(w, "- %v\n", err)
}
