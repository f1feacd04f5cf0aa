package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newPromptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompt [text]",
		Short: "Send one prompt and stream the reply",
		Args:  cobra.ArbitraryArgs,
		RunE:  runPromptCmd,
	}

	cmd.Flags().String("mode", "", "session mode to switch to first")
	cmd.Flags().String("model", "", "session model to switch to first")
	cmd.Flags().Bool("markdown", false, "render the final reply as markdown")

	return cmd
}

func runPromptCmd(cmd *cobra.Command, args []string) error {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" && !isInteractive() {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read prompt: %w", err)
		}
		text = strings.TrimSpace(string(data))
	}
	if text == "" {
		return fmt.Errorf("prompt is required")
	}

	modeID, _ := cmd.Flags().GetString("mode")
	modelID, _ := cmd.Flags().GetString("model")
	markdown, _ := cmd.Flags().GetBool("markdown")

	app, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := cmd.Context()
	if _, err := app.Open(ctx); err != nil {
		fmt.Fprintln(os.Stderr, styledError("could not start agent", err.Error()))
		return err
	}

	if modeID != "" {
		if err := app.Client.SetMode(ctx, modeID); err != nil {
			return fmt.Errorf("set mode %s: %w", modeID, err)
		}
	}
	if modelID != "" {
		if err := app.Client.SetModel(ctx, modelID); err != nil {
			return fmt.Errorf("set model %s: %w", modelID, err)
		}
	}

	out := cmd.OutOrStdout()
	printer := &eventPrinter{out: out, quiet: markdown}
	app.Client.OnEvent(printer.handle)

	stop := cancelOnInterrupt(app)
	result, err := app.Client.SendMessage(ctx, text)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, styledError("prompt failed", err.Error()))
		return err
	}

	if markdown {
		fmt.Fprint(out, renderMarkdown(newMarkdownRenderer(), result.Text))
	} else {
		fmt.Fprintln(out)
	}
	printStopReason(out, result.StopReason)
	return nil
}
