package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"dataflow/pkg/contracts/domain"
)

func newConvertCmd(c *cli) *cobra.Command {
	var output string

	kinds := make([]string, 0, len(domain.ConversionKinds()))
	for _, k := range domain.ConversionKinds() {
		kinds = append(kinds, string(k))
	}

	cmd := &cobra.Command{
		Use:   "convert KIND FILE...",
		Short: "Convert documents: " + strings.Join(kinds, ", "),
		Long: `Convert submits files to one conversion workflow and saves the result.

  merge          merge PDF files into merged.pdf
  image-to-pdf   combine images into converted.pdf
  pdf-to-image   turn one PDF into converted_images.zip`,
		Example:   `  dataflow convert merge a.pdf b.pdf -o out/`,
		Args:      cobra.MinimumNArgs(1),
		ValidArgs: kinds,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			kind, err := domain.ParseConversionKind(args[0])
			if err != nil {
				return err
			}

			files, err := loadUploads(ctx, args[1:])
			if err != nil {
				return err
			}

			wb := c.newWorkbench(cmd)
			conv, _ := wb.Conversion(kind)
			if err := conv.Select(ctx, files); err != nil {
				return err
			}
			download, err := conv.Submit(ctx)
			if err != nil {
				return err
			}

			path, err := writeDownload(download, output)
			if err != nil {
				return err
			}
			c.logger.InfoContext(ctx, "conversion saved",
				slog.String("kind", string(kind)),
				slog.Int("files", len(files)),
				slog.String("path", path))
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file or directory (default: the result's own filename)")
	return cmd
}
