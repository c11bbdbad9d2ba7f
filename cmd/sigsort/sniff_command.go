package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/sigsort/internal/signature"
)

func newSniffCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sniff <file>...",
		Short: "只识别文件类型，不移动任何文件",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows := make([][]string, 0, len(args))
			for _, p := range args {
				rows = append(rows, sniffRow(p))
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"file", "type", "category", "ext", "suggested"},
				rows, nil,
			))
			return nil
		},
	}
}

func sniffRow(path string) []string {
	name := filepath.Base(path)
	sig, err := signature.Detect(path)
	if err != nil {
		return []string{path, "error", "-", "-", err.Error()}
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	info, ok := signature.Lookup(sig)
	if !ok {
		return []string{path, string(sig), "-", ext, "-"}
	}
	suggested := "-"
	if !info.Accepts(ext) {
		suggested = strings.TrimSuffix(name, filepath.Ext(name)) + "." + info.Canonical()
	}
	return []string{path, string(sig), string(info.Category), ext, suggested}
}
