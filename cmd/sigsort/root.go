package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "sigsort",
		Short:         "按文件头魔数识别真实类型，并把文件整理进分类子目录",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newCategoriesCommand())
	rootCmd.AddCommand(newSniffCommand())
	return rootCmd
}
