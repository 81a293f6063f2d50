package cli

import (
	"fmt"
	"os"

	"evaluation-service/internal/app"
	"evaluation-service/internal/config"
	"evaluation-service/internal/domain"
	"evaluation-service/internal/tui"
	"github.com/spf13/cobra"
)

// NewTakeCmd runs one evaluation in the terminal.
func NewTakeCmd(configPath *string) *cobra.Command {
	var (
		userID  string
		name    string
		report  bool
		noColor bool
	)
	cmd := &cobra.Command{
		Use:   "take <evaluation-id>",
		Short: "Take an evaluation in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			rt, err := buildRuntime(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			session, err := rt.service.Start(cmd.Context(), app.StartRequest{
				EvaluationID: args[0],
				Participant:  domain.Participant{ID: userID, Name: name},
				Reporting:    report,
			})
			if err != nil {
				return fmt.Errorf("start evaluation %s: %w", args[0], err)
			}
			defer session.Engine.Close()

			return tui.Run(session.Engine, cmd.InOrStdin(), cmd.OutOrStdout(), tui.Options{
				Title:   session.Title,
				NoColor: noColor || os.Getenv("NO_COLOR") != "",
			})
		},
	}
	defaultUser := os.Getenv("USER")
	if defaultUser == "" {
		defaultUser = "local"
	}
	cmd.Flags().StringVar(&userID, "user", defaultUser, "participant id")
	cmd.Flags().StringVar(&name, "name", defaultUser, "participant display name")
	cmd.Flags().BoolVar(&report, "report", false, "record results like a hosted session")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")
	return cmd
}
