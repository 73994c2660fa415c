package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/sagernet/sing-cerl/internal/replay"
	"github.com/sagernet/sing-cerl/registry"
	E "github.com/sagernet/sing/common/exceptions"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type runOptions struct {
	algorithm string
	logLevel  string
}

func newRunCommand() *cobra.Command {
	var options runOptions
	command := &cobra.Command{
		Use:   "run <trace.yaml>",
		Short: "Replay a trace and print the window after every event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.OutOrStdout(), args[0], options)
		},
	}
	command.Flags().StringVarP(&options.algorithm, "algorithm", "a", "", "congestion control name, overrides the trace")
	command.Flags().StringVar(&options.logLevel, "log-level", "warn", "log level (trace, debug, info, warn, error)")
	return command
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List congestion control names",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range registry.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	}
}

func newLogger(level string) (*logrus.Logger, error) {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, E.Cause(err, "parse log level")
	}
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(parsed)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return log, nil
}

func run(output io.Writer, path string, options runOptions) error {
	log, err := newLogger(options.logLevel)
	if err != nil {
		return err
	}
	trace, err := replay.Load(path)
	if err != nil {
		return err
	}
	result, err := replay.Run(trace, options.algorithm, log)
	if err != nil {
		return err
	}
	log.Info("replayed ", len(result.Steps), " events through ", result.Algorithm)
	return writeResult(output, result)
}

func writeResult(output io.Writer, result *replay.Result) error {
	writer := tabwriter.NewWriter(output, 0, 4, 2, ' ', 0)
	header := "#\tEVENT\tCWND\tSSTHRESH"
	if len(result.Steps) > 0 && result.Steps[0].Cerl != nil {
		header += "\tMODE\tBASE_RTT\tMIN_RTT\tQUEUE\tTHRESHOLD"
	}
	fmt.Fprintln(writer, header)
	for _, step := range result.Steps {
		fmt.Fprintf(writer, "%d\t%s\t%d\t%d", step.Index, step.Event, step.CongestionWindow, step.SlowStartThreshold)
		if step.Cerl != nil {
			fmt.Fprintf(writer, "\t%s\t%s\t%s\t%d\t%d", step.Cerl.Mode, step.Cerl.BaseRTT, step.Cerl.MinRTT, step.Cerl.QueueLength, step.Cerl.DynamicThreshold)
		}
		fmt.Fprintln(writer)
	}
	return writer.Flush()
}
