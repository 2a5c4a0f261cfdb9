package cli

import (
	"github.com/spf13/cobra"
)

const defaultConfigPath = "config/config.yaml"

func Execute() error {
	return NewRoot().Execute()
}

func NewRoot() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "paper-review",
		Short:         "多 agent 论文评审服务",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "配置文件路径")
	root.AddCommand(
		serveCmd(&configPath),
		reviewCmd(&configPath),
	)
	return root
}
