package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	"composebot/pkg/activity"
	"composebot/pkg/config"
	"composebot/pkg/demo"
	"composebot/pkg/logger"
	"composebot/pkg/turn"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var invokeRaw bool

var invokeCmd = &cobra.Command{
	Use:   "invoke [file|-]",
	Short: "Dispatch one activity through the demo extension",
	Long:  "Reads an activity as JSON from a file or stdin, routes it through the demo message extension and prints the invoke response.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source := "-"
		if len(args) == 1 {
			source = args[0]
		}

		input, err := readActivitySource(source, cmd.InOrStdin())
		if err != nil {
			return err
		}

		log, err := logger.New(config.LoggingConfig{Level: "warn"})
		if err != nil {
			return err
		}

		return runInvoke(cmd.Context(), input, cmd.OutOrStdout(), invokeRaw, log)
	},
}

func init() {
	invokeCmd.Flags().BoolVar(&invokeRaw, "raw", false, "print the outcome as plain JSON")
	rootCmd.AddCommand(invokeCmd)
}

// invokeOutcome is everything one dispatched turn produced.
type invokeOutcome struct {
	Matched        bool                     `json:"matched"`
	InvokeResponse *activity.InvokeResponse `json:"invokeResponse,omitempty"`
	Activities     []activity.Activity      `json:"activities,omitempty"`
}

func readActivitySource(source string, stdin io.Reader) ([]byte, error) {
	if source == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("read activity file: %w", err)
	}

	return data, nil
}

func runInvoke(ctx context.Context, input []byte, out io.Writer, raw bool, log *slog.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var inbound activity.Activity
	if err := json.Unmarshal(input, &inbound); err != nil {
		return fmt.Errorf("decode activity: %w", err)
	}
	if strings.TrimSpace(inbound.Type) == "" {
		return errors.New("activity type is required")
	}

	outcome, err := dispatchActivity(ctx, inbound, log)
	if err != nil {
		return err
	}

	if raw {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(outcome)
	}

	_, err = io.WriteString(out, renderOutcome(defaultTheme(), inbound, outcome)+"\n")
	return err
}

// dispatchActivity runs one turn through the demo application. An invoke
// that nothing answered reports 501.
func dispatchActivity(ctx context.Context, inbound activity.Activity, log *slog.Logger) (invokeOutcome, error) {
	application := demo.NewApplication(demo.DefaultCatalog(), log)

	tc, buf := turn.NewBuffered(inbound)
	matched, err := application.Run(ctx, tc, demo.NewState(tc))
	if err != nil {
		return invokeOutcome{}, fmt.Errorf("dispatch activity: %w", err)
	}

	outcome := invokeOutcome{Matched: matched}
	for _, sent := range buf.Activities() {
		if sent.Type != activity.TypeInvokeResponse {
			outcome.Activities = append(outcome.Activities, sent)
		}
	}

	if resp, ok := buf.InvokeResponse(); ok {
		outcome.InvokeResponse = &resp
	} else if inbound.Type == activity.TypeInvoke {
		outcome.InvokeResponse = &activity.InvokeResponse{Status: http.StatusNotImplemented}
	}

	return outcome, nil
}

func renderOutcome(th theme, inbound activity.Activity, outcome invokeOutcome) string {
	label := inbound.Type
	if inbound.Name != "" {
		label = inbound.Name
	}

	meta := "no route matched"
	if outcome.Matched {
		meta = "matched"
	}
	if commandID, ok := inbound.StringField("commandId"); ok {
		meta += " · " + commandID
	}

	sections := []string{
		lipgloss.JoinHorizontal(lipgloss.Top, th.header.Render(label), " ", th.headerMeta.Render(meta)),
	}

	if resp := outcome.InvokeResponse; resp != nil {
		statusStyle := th.statusOK
		if resp.Status >= http.StatusBadRequest {
			statusStyle = th.statusErr
		}
		status := statusStyle.Render(strconv.Itoa(resp.Status) + " " + http.StatusText(resp.Status))

		body := th.hint.Render("(no body)")
		if resp.Body != nil {
			body = prettyJSON(resp.Body)
		}
		sections = append(sections, th.bodyTitle.Render("invoke response")+" "+status, th.bodyBox.Render(body))
	}

	for i, sent := range outcome.Activities {
		title := th.activityName.Render(fmt.Sprintf("activity %d · %s", i+1, sent.Type))
		sections = append(sections, title, th.activityBox.Render(prettyJSON(sent)))
	}

	if len(sections) == 1 {
		sections = append(sections, th.hint.Render("nothing was sent"))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func prettyJSON(value any) string {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}

	var indented bytes.Buffer
	if err := json.Indent(&indented, data, "", "  "); err != nil {
		return string(data)
	}

	return indented.String()
}
