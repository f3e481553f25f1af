package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"moodvox/internal/ipc"
)

var (
	socketPath string
	timeout    time.Duration
	asJSON     bool
)

var rootCmd = &cobra.Command{
	Use:   "moodvox-ctl",
	Short: "Control a running moodvox-daemon",
	Long: `Talk to moodvox-daemon over its control socket.

  moodvox-ctl trigger            # start listening, run again to finish
  moodvox-ctl say "rough day"    # chat by text
  moodvox-ctl analyze clip.mp3   # run a voice turn on a file
  moodvox-ctl mood               # show the mood profile`,
	SilenceUsage: true,
}

func simple(use, short, cmd string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return call(c, ipc.Request{Cmd: cmd})
		},
	}
}

var sayCmd = &cobra.Command{
	Use:   "say <text>",
	Short: "Send a text message to the assistant",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		return call(c, ipc.Request{Cmd: ipc.CmdSay, Text: joinArgs(args)})
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <audio-file>",
	Short: "Run a voice turn on a wav, mp3 or ogg file",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		path, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		return call(c, ipc.Request{Cmd: ipc.CmdAnalyze, Path: path})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&socketPath, "socket", "s", ipc.DefaultSocketPath, "Daemon control socket")
	rootCmd.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 2*time.Minute, "How long to wait for the daemon")
	rootCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "Print the raw response")

	rootCmd.AddCommand(
		simple("trigger", "Toggle recording: start, or stop and process", ipc.CmdTrigger),
		simple("start", "Start recording", ipc.CmdStart),
		simple("stop", "Stop recording and process the voice turn", ipc.CmdStop),
		simple("mood", "Show the mood profile", ipc.CmdMood),
		simple("history", "Show the conversation history", ipc.CmdHistory),
		simple("clear", "Clear the conversation history", ipc.CmdClear),
		simple("reset", "Reset the mood profile", ipc.CmdReset),
		sayCmd,
		analyzeCmd,
	)
}

func call(c *cobra.Command, req ipc.Request) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	resp, err := ipc.Send(ctx, socketPath, req)
	if err != nil {
		return fmt.Errorf("moodvox-daemon not running: %w", err)
	}

	out, err := render(req.Cmd, resp, asJSON)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.OutOrStdout(), out)
	if !resp.OK {
		return errSilent
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if err != errSilent {
			fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		}
		os.Exit(1)
	}
}
