package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newGetCmd() *cobra.Command {
	var contentFlag bool

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Fetch an artifact manifest (or its content) by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if contentFlag {
				content, err := service.GetContent(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				_, err = os.Stdout.Write(content)

				return err
			}

			manifest, err := service.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return printJSON(manifest)
		},
	}

	cmd.Flags().BoolVar(&contentFlag, "content", false, "Print the raw content instead of the manifest")

	return cmd
}

func newRefsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refs <canonical-name>",
		Short: "List the named refs of a canonical name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			refs, err := service.ListRefs(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return printJSON(refs)
		},
	}
}

func newVersionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "versions <component-id>",
		Short: "List a component's published versions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			versions, err := service.ListVersions(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return printJSON(versions)
		},
	}
}

func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <reference>",
		Short: "Resolve a reference (id, name, name@ref or name@range) to an artifact id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := service.Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Println(id)

			return nil
		},
	}
}
