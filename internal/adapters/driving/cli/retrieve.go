package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tessellate-ai/contextd/internal/core/domain"
)

var (
	retrieveSources []string
	retrieveLimit   int
	retrieveDays    int
	retrieveOlder   bool
	retrieveEntity  map[string]string
	retrieveAs      string
	retrieveJSON    bool
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve [query]",
	Short: "Retrieve ranked context for a query",
	Long: `Runs semantic retrieval across the indexed sources and prints the
merged, ranked context list. Without a query argument the most recent
items per source are returned.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRetrieve,
}

func init() {
	retrieveCmd.Flags().StringSliceVarP(&retrieveSources, "sources", "s", nil,
		"sources to query (default: all authorized)")
	retrieveCmd.Flags().IntVarP(&retrieveLimit, "limit", "n", 0,
		"maximum number of context items")
	retrieveCmd.Flags().IntVarP(&retrieveDays, "days", "d", 0,
		"restrict to the last N days")
	retrieveCmd.Flags().BoolVar(&retrieveOlder, "older", false,
		"with --days, return items older than the cutoff instead")
	retrieveCmd.Flags().StringToStringVarP(&retrieveEntity, "entity", "e", nil,
		"entity focus as key=value pairs (e.g. account_id=acc-1)")
	retrieveCmd.Flags().StringVar(&retrieveAs, "as", "",
		"run as this principal (requires a principals file)")
	retrieveCmd.Flags().BoolVar(&retrieveJSON, "json", false,
		"output the response as JSON")
	rootCmd.AddCommand(retrieveCmd)
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	if err := initServices(); err != nil {
		return err
	}
	ctx := context.Background()

	authorized, err := resolveAuthorized(ctx)
	if err != nil {
		return err
	}

	query := domain.Query{
		EntityFocus: retrieveEntity,
		Limit:       retrieveLimit,
	}
	if len(args) == 1 {
		query.Text = args[0]
	}
	if len(retrieveSources) == 0 {
		query.Sources = authorized
	} else {
		for _, raw := range retrieveSources {
			source, err := domain.ParseSourceID(raw)
			if err != nil {
				return err
			}
			query.Sources = append(query.Sources, source)
		}
	}
	if retrieveDays > 0 {
		query.TimeRange = &domain.TimeRange{DaysBack: retrieveDays}
		if retrieveOlder {
			fresh := false
			query.TimeRange.IncludeFresh = &fresh
		}
	}

	resp, err := contextService.Retrieve(ctx, query, authorized)
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}

	if retrieveJSON {
		data, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal response: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}
	return outputContextTable(cmd, resp)
}

// resolveAuthorized maps --as to the principal's grants; without the
// flag the CLI is trusted with every source.
func resolveAuthorized(ctx context.Context) ([]domain.SourceID, error) {
	if retrieveAs == "" {
		return domain.AllSources(), nil
	}
	if authProvider == nil {
		return nil, fmt.Errorf("--as requires auth.principals_file in the config")
	}
	return authProvider.AuthorizedSources(ctx, retrieveAs)
}

func outputContextTable(cmd *cobra.Command, resp *domain.ContextResponse) error {
	if len(resp.Items) == 0 {
		cmd.Println("No context found.")
		return nil
	}

	cmd.Printf("Context (%d items):\n\n", len(resp.Items))
	for i, item := range resp.Items {
		snippet := item.Content
		if len(snippet) > 120 {
			snippet = snippet[:117] + "..."
		}
		snippet = strings.ReplaceAll(snippet, "\n", " ")
		cmd.Printf("[%d] %s/%s %s (%.3f)\n    %s\n",
			i+1, item.Source, item.Kind,
			item.Timestamp.Format("2006-01-02 15:04"), item.Score, snippet)
	}
	if len(resp.DegradedSources) > 0 {
		names := make([]string, len(resp.DegradedSources))
		for i, source := range resp.DegradedSources {
			names[i] = string(source)
		}
		cmd.Printf("\nDegraded sources: %s\n", strings.Join(names, ", "))
	}
	return nil
}
