package cli

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"fn_invoke/auth"
	"fn_invoke/config"
)

func newIdentityCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "identity",
		Short: "Print the resolved signing identity",
		Long:  `Resolve the signing identity from the environment and print a redacted summary as YAML, including whether the private key can be loaded.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			identity, err := auth.Resolve(cmd.Context(), cfg.Credentials)
			if err != nil {
				return err
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()

			return enc.Encode(identity.Summary())
		},
	}
}
