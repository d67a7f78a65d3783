package cli

import (
	"github.com/spf13/cobra"

	"component-registry/orm"
	"component-registry/registry"
	"component-registry/vector"
)

func newSearchCmd() *cobra.Command {
	var (
		topKFlag      int
		minScoreFlag  float64
		kindFlag      string
		fileTypeFlag  string
		mediaTypeFlag string
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Semantic search over published components",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			matches, err := service.Search(cmd.Context(), registry.SearchInput{
				Query:    args[0],
				TopK:     topKFlag,
				MinScore: minScoreFlag,
				Filter: vector.Filter{
					Kind:      kindFlag,
					FileType:  fileTypeFlag,
					MediaType: mediaTypeFlag,
				},
			})
			if err != nil {
				return err
			}

			return printJSON(matches)
		},
	}

	cmd.Flags().IntVar(&topKFlag, "top-k", 0, "Maximum number of matches")
	cmd.Flags().Float64Var(&minScoreFlag, "min-score", 0, "Minimum similarity score")
	cmd.Flags().StringVar(&kindFlag, "kind", "", "Filter by component kind")
	cmd.Flags().StringVar(&fileTypeFlag, "file-type", "", "Filter by file type")
	cmd.Flags().StringVar(&mediaTypeFlag, "media-type", "", "Filter by media type")

	return cmd
}

func newListCmd() *cobra.Command {
	var (
		statusFlag  string
		kindFlag    string
		nameFlag    string
		creatorFlag string
		limitFlag   int
		offsetFlag  int
		orderByFlag string
		descFlag    bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List components from the relational index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			components, total, err := service.List(cmd.Context(), orm.ListFilter{
				Status:        statusFlag,
				Kind:          kindFlag,
				CanonicalName: nameFlag,
				Creator:       creatorFlag,
				Limit:         limitFlag,
				Offset:        offsetFlag,
				OrderBy:       orderByFlag,
				Desc:          descFlag,
			})
			if err != nil {
				return err
			}

			return printJSON(map[string]any{
				"total":      total,
				"components": components,
			})
		},
	}

	cmd.Flags().StringVar(&statusFlag, "status", "", "Filter by status (draft, published)")
	cmd.Flags().StringVar(&kindFlag, "kind", "", "Filter by component kind")
	cmd.Flags().StringVar(&nameFlag, "name", "", "Filter by canonical name")
	cmd.Flags().StringVar(&creatorFlag, "creator", "", "Filter by creator")
	cmd.Flags().IntVar(&limitFlag, "limit", 0, "Page size")
	cmd.Flags().IntVar(&offsetFlag, "offset", 0, "Page offset")
	cmd.Flags().StringVar(&orderByFlag, "order-by", "", "Sort column")
	cmd.Flags().BoolVar(&descFlag, "desc", false, "Sort descending")

	return cmd
}
