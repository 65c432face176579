package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nareshshah139/Clinic-Management-System-sub003/internal/platform/timeslot"
)

func slotsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Inspect time slots offline",
	}

	genCmd := &cobra.Command{
		Use:   "generate",
		Short: "Print the slots of a clinic day",
		RunE: func(cmd *cobra.Command, args []string) error {
			start, _ := cmd.Flags().GetInt("start")
			end, _ := cmd.Flags().GetInt("end")
			step, _ := cmd.Flags().GetInt("step")
			for _, s := range timeslot.Generate(start, end, step) {
				fmt.Fprintln(cmd.OutOrStdout(), s)
			}
			return nil
		},
	}
	genCmd.Flags().Int("start", timeslot.DefaultStartHour, "First hour")
	genCmd.Flags().Int("end", timeslot.DefaultEndHour, "Hour to stop before")
	genCmd.Flags().Int("step", timeslot.DefaultStepMinutes, "Slot length in minutes")
	cmd.AddCommand(genCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "check <slot>",
		Short: "Validate a HH:MM-HH:MM slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ts, err := timeslot.Parse(args[0])
			if err != nil {
				return err
			}
			if !ts.Ordered() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is well formed but ends before it starts\n", ts)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is valid (%d minutes)\n", ts, ts.Duration())
			return nil
		},
	})

	bufCmd := &cobra.Command{
		Use:   "buffer <slot>",
		Short: "Extend a slot's end by a turnover buffer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			minutes, _ := cmd.Flags().GetInt("minutes")
			out, err := timeslot.AddBuffer(args[0], minutes)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	bufCmd.Flags().Int("minutes", timeslot.DefaultBufferMinutes, "Buffer in minutes")
	cmd.AddCommand(bufCmd)

	return cmd
}
