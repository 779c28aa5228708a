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
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pgEdge/quill-rag-server/internal/conversation"
	"github.com/pgEdge/quill-rag-server/internal/pipeline"
)

var (
	askPipeline  string
	askStream    bool
	askThreshold float64
	askHistory   string
)

var askCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Answer one message and print the reply",
	Long: `Answers a single message with the selected pipeline.

With --history-file the file is read as a "User:" / "<assistant>:" transcript
to give the retrieval query context, and the new exchange is appended to it
afterwards, so repeated calls carry on one conversation.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askPipeline, "pipeline", "p", "", "pipeline to query")
	askCmd.Flags().BoolVar(&askStream, "stream", false, "print the reply as it is generated")
	askCmd.Flags().Float64Var(&askThreshold, "threshold", 0, "override the similarity threshold")
	askCmd.Flags().StringVar(&askHistory, "history-file", "", "transcript file read for context and appended to")
}

func runAsk(cmd *cobra.Command, args []string) error {
	message := strings.Join(args, " ")

	history, err := readHistory(askHistory)
	if err != nil {
		return err
	}

	pm, p, pCfg, err := openPipeline(askPipeline)
	if err != nil {
		return err
	}
	defer pm.Close()

	req := pipeline.QueryRequest{
		Query:     message,
		History:   history,
		Threshold: askThreshold,
		Stream:    askStream,
	}
	if err := req.Validate(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var answer string
	if askStream {
		answer, err = streamAnswer(cmd, p, req, out)
	} else {
		var resp *pipeline.QueryResponse
		resp, err = p.Execute(cmd.Context(), req)
		if err == nil {
			answer = resp.Answer
			fmt.Fprintln(out, answer)
		}
	}
	if err != nil {
		return err
	}

	if askHistory == "" {
		return nil
	}
	return appendHistory(askHistory, history, conversation.NewMarkers(pCfg.Prompt.AssistantName),
		message, answer)
}

func streamAnswer(
	cmd *cobra.Command,
	p *pipeline.Pipeline,
	req pipeline.QueryRequest,
	out io.Writer,
) (string, error) {
	chunks, errs := p.ExecuteStream(cmd.Context(), req)

	var sb strings.Builder
	for chunk := range chunks {
		if chunk.Content == "" {
			continue
		}
		sb.WriteString(chunk.Content)
		fmt.Fprint(out, chunk.Content)
	}
	fmt.Fprintln(out)

	if err := <-errs; err != nil {
		return "", err
	}
	return sb.String(), nil
}

// readHistory returns the transcript at path. A missing file is an empty
// conversation.
func readHistory(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read history: %w", err)
	}
	return string(data), nil
}

// appendHistory writes the exchange to the transcript at path. Answers are
// folded onto one line so the file parses back into the same turns.
func appendHistory(path, history string, m conversation.Markers, message, answer string) error {
	exchange := conversation.Render([]conversation.Turn{
		{Role: conversation.RoleUser, Content: oneLine(message)},
		{Role: conversation.RoleAssistant, Content: oneLine(answer)},
	}, m)

	if history != "" && !strings.HasSuffix(history, "\n") {
		exchange = "\n" + exchange
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(exchange + "\n"); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	return nil
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
