//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pgEdge/quill-rag-server/internal/documents"
)

var (
	ingestPipeline string
	ingestAll      bool
	countPipeline  string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file...]",
	Short: "Add documents from files or stdin",
	Long: `Reads each file (or stdin when no file or "-" is given), splits it into
paragraphs on blank lines and stores every paragraph as one document.
Paragraphs that are already stored are skipped unless --all is set.`,
	RunE: runIngest,
}

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of stored documents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		pm, p, _, err := openPipeline(countPipeline)
		if err != nil {
			return err
		}
		defer pm.Close()

		n, err := p.CountDocuments(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), n)
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestPipeline, "pipeline", "p", "", "pipeline to load into")
	ingestCmd.Flags().BoolVar(&ingestAll, "all", false, "insert paragraphs even if already stored")
	countCmd.Flags().StringVarP(&countPipeline, "pipeline", "p", "", "pipeline to count")
}

func runIngest(cmd *cobra.Command, args []string) error {
	texts, err := readParagraphs(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	pm, p, _, err := openPipeline(ingestPipeline)
	if err != nil {
		return err
	}
	defer pm.Close()

	stats, err := p.LoadDocuments(cmd.Context(), texts, !ingestAll)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "inserted %d, skipped %d\n", stats.Inserted, stats.Skipped)
	return nil
}

// readParagraphs reads every named file, or stdin for none or "-", and
// returns their paragraphs in order.
func readParagraphs(stdin io.Reader, paths []string) ([]string, error) {
	if len(paths) == 0 {
		paths = []string{"-"}
	}

	var texts []string
	for _, path := range paths {
		var (
			data []byte
			err  error
		)
		if path == "-" {
			data, err = io.ReadAll(stdin)
		} else {
			data, err = os.ReadFile(path)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		texts = append(texts, documents.SplitParagraphs(string(data))...)
	}
	return texts, nil
}
