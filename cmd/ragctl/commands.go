package main

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/animadocs/ragd/pkg/api"
)

var (
	headColor  = color.New(color.FgCyan, color.Bold)
	okColor    = color.New(color.FgGreen)
	warnColor  = color.New(color.FgYellow)
	errColor   = color.New(color.FgRed, color.Bold)
	faintColor = color.New(color.Faint)
)

var (
	flagRetrieveOnly bool
	flagTopK         int
	flagForce        bool
)

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Ask a question against the indexed documentation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := &api.QueryRequest{
			Query:        args[0],
			RetrieveOnly: flagRetrieveOnly,
		}
		if flagTopK > 0 {
			req.TopK = &flagTopK
		}

		var resp api.QueryResponse
		if err := newClient().do(cmd.Context(), "POST", "/query", req, &resp); err != nil {
			return err
		}

		if resp.Response != "" {
			headColor.Println("Answer")
			fmt.Println(resp.Response)
			fmt.Println()
		}
		printSources(resp.Sources, flagRetrieveOnly)
		faintColor.Printf("retrieval %.3fs, total %.3fs, %d result(s)\n",
			resp.RetrievalTime, resp.TotalProcessingTime, resp.Metadata.TotalResults)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <phrase>",
	Short: "Retrieve matching documents without LLM synthesis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q := url.Values{"q": {args[0]}}
		if flagTopK > 0 {
			q.Set("top_k", strconv.Itoa(flagTopK))
		}

		var resp api.SearchResponse
		if err := newClient().do(cmd.Context(), "GET", "/search?"+q.Encode(), nil, &resp); err != nil {
			return err
		}

		printSources(resp.Results, true)
		faintColor.Printf("%d result(s) in %.3fs\n", resp.TotalFound, resp.ProcessingTime)
		return nil
	},
}

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Trigger an asynchronous index rebuild",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp api.RebuildResponse
		err := newClient().do(cmd.Context(), "POST", "/rebuild-index",
			&api.RebuildRequest{ForceRebuild: flagForce}, &resp)
		if err != nil {
			return err
		}
		okColor.Println(resp.Message)
		faintColor.Println("watch `ragctl stats` for completion")
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index and pipeline statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp api.StatsResponse
		if err := newClient().do(cmd.Context(), "GET", "/stats", nil, &resp); err != nil {
			return err
		}

		headColor.Println("Index")
		fmt.Printf("  ready:        %v\n", resp.IndexReady)
		fmt.Printf("  chunks:       %d\n", resp.ChunkCount)
		fmt.Printf("  documents:    %d .py, %d .md (%d skipped, %d failed)\n",
			resp.Documents.Py, resp.Documents.Md, resp.Documents.Skipped, resp.Documents.Failed)
		if resp.LastBuildAt != "" {
			fmt.Printf("  last build:   %s (%.2fs)\n", resp.LastBuildAt, resp.LastBuildSeconds)
		}
		headColor.Println("Store")
		fmt.Printf("  type:         %s\n", resp.StoreType)
		fmt.Printf("  persist dir:  %s\n", resp.PersistDirectory)
		fmt.Printf("  size:         %d bytes\n", resp.VectorStoreSize)
		fmt.Printf("  sources:      %v\n", resp.SourceDirectories)
		fmt.Printf("  top_k:        %d\n", resp.TopKRetrieval)
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check server and component health",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := newClient().getHealth(cmd.Context())
		if err != nil {
			return err
		}

		statusLine(report.Status == "healthy", "overall: "+report.Status)
		statusLine(report.PipelineReady, fmt.Sprintf("pipeline ready: %v", report.PipelineReady))
		for name, comp := range report.Components {
			msg := comp.Status
			if comp.Message != "" {
				msg += " (" + comp.Message + ")"
			}
			if comp.Latency != "" {
				msg += " " + comp.Latency
			}
			statusLine(comp.Status == "up", name+": "+msg)
		}
		if report.Status != "healthy" {
			return fmt.Errorf("server is not healthy")
		}
		return nil
	},
}

func init() {
	queryCmd.Flags().BoolVar(&flagRetrieveOnly, "retrieve-only", false, "skip LLM synthesis and print raw chunks")
	queryCmd.Flags().IntVar(&flagTopK, "top-k", 0, "number of documents to retrieve")
	searchCmd.Flags().IntVar(&flagTopK, "top-k", 0, "number of documents to retrieve")
	rebuildCmd.Flags().BoolVar(&flagForce, "force", false, "rebuild even when a persisted index exists")
}

func printSources(chunks []api.RetrievedChunk, withContent bool) {
	if len(chunks) == 0 {
		warnColor.Println("no sources")
		return
	}
	headColor.Println("Sources")
	for _, c := range chunks {
		fmt.Printf("  %2d. %s (score %.3f)\n", c.Rank, c.Path, c.Score)
		if withContent && c.Content != "" {
			faintColor.Printf("      %s\n", firstLine(c.Content))
		}
	}
	fmt.Println()
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
		if i > 120 {
			return s[:i] + "..."
		}
	}
	return s
}

func statusLine(ok bool, text string) {
	if ok {
		okColor.Println("  " + text)
	} else {
		errColor.Println("  " + text)
	}
}
