package cmd

import (
	"llm-batch-call/pkg/util"

	"github.com/spf13/cobra"
)

func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "llm-batch-call",
		Short: "表格数据批量调用大模型处理工具",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableNoDescFlag:   true,
			DisableDescriptions: true,
			HiddenDefaultCmd:    true,
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(NewRunCommand())
	rootCmd.AddCommand(NewVersionCommand())

	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		cmd.Println("使用 'run' 子命令进行批量处理")
		return cmd.Help()
	}
	rootCmd.Version = util.GetVersion().Version
	return rootCmd
}
