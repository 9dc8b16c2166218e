package main

import (
	"context"
	"fmt"

	"github.com/memes/hexpi"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	DigitsCommandName = "digits"
	StartFlagName     = "start"
	CountFlagName     = "count"
	ParallelFlagName  = "parallel"
	DefaultDigitCount = 32
)

// Implements the digits sub-command which calculates digits of pi locally.
func NewDigitsCmd() *cobra.Command {
	digitsCmd := &cobra.Command{
		Use:     DigitsCommandName,
		Short:   "Calculate hexadecimal digits of pi locally",
		Long:    `Calculates a run of hexadecimal fractional digits of pi and prints them. When the run starts at the first fractional digit the output is prefixed with "3.".`,
		Args:    cobra.NoArgs,
		PreRunE: bindLocalFlags,
		RunE:    digitsMain,
	}
	digitsCmd.Flags().Uint64P(StartFlagName, "s", 0, "The zero-based index of the first fractional digit")
	digitsCmd.Flags().Uint32P(CountFlagName, "c", DefaultDigitCount, "The number of hexadecimal digits of pi to calculate")
	digitsCmd.Flags().Bool(ParallelFlagName, false, "Calculate each digit concurrently")
	return digitsCmd
}

// Digits sub-command entrypoint.
func digitsMain(cmd *cobra.Command, _ []string) error {
	start := viper.GetUint64(StartFlagName)
	count := viper.GetUint32(CountFlagName)
	parallel := viper.GetBool(ParallelFlagName)
	logger := logger.V(1).WithValues(StartFlagName, start, CountFlagName, count, ParallelFlagName, parallel)
	hexpi.SetLogger(logger)
	if err := hexpi.ValidateRange(start, count); err != nil {
		return fmt.Errorf("invalid digit range: %w", err)
	}
	if exceedsPrecisionCeiling(start, count) {
		logger.V(0).Info("Digits beyond the precision ceiling may be incorrect", "ceiling", hexpi.PrecisionCeiling)
	}
	var digits string
	if parallel {
		var err error
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if digits, err = hexpi.DigitsContext(ctx, start, count); err != nil {
			return fmt.Errorf("failed to calculate digits: %w", err)
		}
	} else {
		digits = hexpi.Digits(start, count)
	}
	if start == 0 {
		digits = "3." + digits
	}
	if _, err := fmt.Fprintln(cmd.OutOrStdout(), digits); err != nil {
		return fmt.Errorf("failure writing result: %w", err)
	}
	return nil
}

// Returns true if the last index in [start, start+count) is beyond
// hexpi.PrecisionCeiling.
func exceedsPrecisionCeiling(start uint64, count uint32) bool {
	if count == 0 {
		return false
	}
	last := uint64(count - 1)
	return last > hexpi.PrecisionCeiling || start > hexpi.PrecisionCeiling-last
}
