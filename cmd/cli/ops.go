package main

import (
	"github.com/spf13/cobra"
)

func reapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reap",
		Short: "Delete unconfirmed jobs older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Reaper.Run(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(res)
		},
	}
}

func summaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show the monthly income and expense summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireUser(); err != nil {
				return err
			}
			month, _ := cmd.Flags().GetString("month")
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			s, err := a.Summary.Summary(cmd.Context(), userID, month)
			if err != nil {
				return err
			}
			return printJSON(s)
		},
	}
	cmd.Flags().String("month", "", "Month as YYYY-MM (default: current month)")
	return cmd
}
