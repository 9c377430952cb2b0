package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/dispatchmap/core/dispatch"
	"github.com/kilianp07/dispatchmap/core/session"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Session snapshot commands",
}

var sessionValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Load a session snapshot and print the initial render model",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSessionValidate,
}

func init() {
	sessionCmd.AddCommand(sessionValidateCmd)
	rootCmd.AddCommand(sessionCmd)
}

func runSessionValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigOrDefaults()
	if err != nil {
		return err
	}
	var snap session.Snapshot
	if len(args) == 1 {
		snap, err = session.Load(args[0])
	} else {
		snap, err = cfg.Session.Load()
	}
	if err != nil {
		return fmt.Errorf("invalid session: %w", err)
	}
	st, err := dispatch.New(snap, cfg.Engine.Options())
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(dispatch.Render(st))
}
