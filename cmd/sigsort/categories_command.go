package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/sigsort/internal/category"
)

func newCategoriesCommand() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "categories",
		Short: "打印生效的扩展名分类表",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			table := category.Default()
			if path != "" {
				b, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("读取分类文件失败：%w", err)
				}
				entries, err := category.ParseOverride(b)
				if err != nil {
					return fmt.Errorf("分类文件不合法（%s）：%w", path, err)
				}
				table = category.New(entries, table.DefaultCategory())
			}

			rows := make([][]string, 0, len(table.Categories())+1)
			for _, c := range table.Categories() {
				rows = append(rows, []string{string(c), strings.Join(table.Extensions(c), " ")})
			}
			rows = append(rows, []string{string(table.DefaultCategory()), "(其他)"})
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"category", "extensions"}, rows, nil))
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "categories", "c", "", "分类覆盖文件（JSON）")
	return cmd
}
