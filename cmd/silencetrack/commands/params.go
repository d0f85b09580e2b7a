package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maauso/silencetrack/internal/report"
	"github.com/maauso/silencetrack/internal/silence"
)

type paramsOutput struct {
	Plugin             silence.Info                  `json:"plugin" yaml:"plugin" msgpack:"plugin"`
	Parameters         []silence.ParameterDescriptor `json:"parameters" yaml:"parameters" msgpack:"parameters"`
	Outputs            []silence.OutputDescriptor    `json:"outputs" yaml:"outputs" msgpack:"outputs"`
	PreferredStepSize  int                           `json:"preferred_step_size" yaml:"preferred_step_size" msgpack:"preferred_step_size"`
	PreferredBlockSize int                           `json:"preferred_block_size" yaml:"preferred_block_size" msgpack:"preferred_block_size"`
}

func newParamsCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "params",
		Short: "Show the tracker parameter and output descriptors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			if f == report.FormatMsgpack {
				return fmt.Errorf("params: msgpack output is not supported")
			}
			return report.EncodeValue(cmd.OutOrStdout(), paramsOutput{
				Plugin:             silence.Describe(),
				Parameters:         silence.Parameters(),
				Outputs:            silence.Outputs(),
				PreferredStepSize:  silence.PreferredStepSize,
				PreferredBlockSize: silence.PreferredBlockSize,
			}, f)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "output format (json, yaml)")
	return cmd
}
