package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newHealthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the backend is up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := a.client().Health(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (database %s)\n", a.cfg.Backend.URL, h.Status, h.Database)
			if !h.Healthy() {
				return fmt.Errorf("backend unhealthy: %s", h.Error)
			}
			return nil
		},
	}
}

func newClassifyCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "classify <text>...",
		Short: "Show how the backend would categorise a request",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client().Classify(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, c)
			}
			fmt.Fprintf(out, "category   %s\npriority   %s\nconfidence %.2f\n", c.Category, c.Priority, c.Confidence)
			if c.AutoResolve && c.ResolutionMessage != nil {
				fmt.Fprintf(out, "resolution %s\n", *c.ResolutionMessage)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
