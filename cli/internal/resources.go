package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/devilmonastery/notedesk/internal/client"
	"github.com/devilmonastery/notedesk/internal/pkg/urlutil"
)

// namedResource builds the commands shared by categories and tags, both of
// which are {id, name} collections
type namedResource[T any] struct {
	singular string
	plural   string
	resource func(*CliContext) *client.Resource[T]
	option   func(T) client.Option
	webPage  func(baseURL string) (string, error)
}

func (r namedResource[T]) command(extra ...*cobra.Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   r.plural,
		Short: fmt.Sprintf("Manage %s", r.plural),
	}

	cmd.AddCommand(r.listCommand())
	cmd.AddCommand(r.createCommand())
	cmd.AddCommand(r.updateCommand())
	cmd.AddCommand(r.patchCommand())
	cmd.AddCommand(r.deleteCommand())
	cmd.AddCommand(extra...)

	return cmd
}

func (r namedResource[T]) listCommand() *cobra.Command {
	var (
		page   int
		search string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: fmt.Sprintf("List %s", r.plural),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := getCliContext(cmd)

			result, err := r.resource(cliCtx).List(cmd.Context(), page, search)
			if err != nil {
				return fmt.Errorf("failed to list %s: %w", r.plural, err)
			}

			out := cmd.OutOrStdout()
			if len(result.Results) == 0 {
				fmt.Fprintf(out, "No %s found\n", r.plural)
				return nil
			}

			options := make([]client.Option, len(result.Results))
			for i, item := range result.Results {
				options[i] = r.option(item)
			}
			if err := printOptions(out, options); err != nil {
				return err
			}
			printPageFooter(out, page, len(result.Results), result.Count, result.HasNext())
			if webURL := cliCtx.Config.WebURL(); webURL != "" {
				if link, err := r.webPage(webURL); err == nil {
					fmt.Fprintf(out, "Manage in browser: %s\n", link)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "Page number (1-based)")
	cmd.Flags().StringVarP(&search, "search", "s", "", "Only show entries matching this text")

	return cmd
}

func (r namedResource[T]) createCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "create NAME",
		Short: fmt.Sprintf("Create a %s", r.singular),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := getCliContext(cmd)

			created, err := r.resource(cliCtx).Create(cmd.Context(), client.NameInput{Name: args[0]})
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", r.singular, err)
			}

			opt := r.option(*created)
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Created %s %d (%s)\n", r.singular, opt.Value, opt.Label)
			return nil
		},
	}
}

func (r namedResource[T]) updateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "update ID NAME",
		Short: fmt.Sprintf("Replace a %s", r.singular),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := getCliContext(cmd)

			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			updated, err := r.resource(cliCtx).Update(cmd.Context(), id, client.NameInput{Name: args[1]})
			if err != nil {
				return fmt.Errorf("failed to update %s: %w", r.singular, err)
			}

			opt := r.option(*updated)
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Updated %s %d (%s)\n", r.singular, opt.Value, opt.Label)
			return nil
		},
	}
}

func (r namedResource[T]) patchCommand() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "patch ID",
		Short: fmt.Sprintf("Change selected fields of a %s", r.singular),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := getCliContext(cmd)

			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			fields := map[string]any{}
			if cmd.Flags().Changed("name") {
				fields["name"] = name
			}
			if len(fields) == 0 {
				return fmt.Errorf("nothing to change: set --name")
			}

			patched, err := r.resource(cliCtx).Patch(cmd.Context(), id, fields)
			if err != nil {
				return fmt.Errorf("failed to patch %s: %w", r.singular, err)
			}

			opt := r.option(*patched)
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Patched %s %d (%s)\n", r.singular, opt.Value, opt.Label)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New name")

	return cmd
}

func (r namedResource[T]) deleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: fmt.Sprintf("Delete a %s", r.singular),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := getCliContext(cmd)

			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			if err := r.resource(cliCtx).Remove(cmd.Context(), id); err != nil {
				return fmt.Errorf("failed to delete %s: %w", r.singular, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted %s %d\n", r.singular, id)
			return nil
		},
	}
}

var categoryCommands = namedResource[client.Category]{
	singular: "category",
	plural:   "categories",
	resource: func(c *CliContext) *client.Resource[client.Category] { return c.API.Categories },
	option:   client.CategoryOption,
	webPage:  urlutil.CategoriesURL,
}

var tagCommands = namedResource[client.Tag]{
	singular: "tag",
	plural:   "tags",
	resource: func(c *CliContext) *client.Resource[client.Tag] { return c.API.Tags },
	option:   client.TagOption,
	webPage:  urlutil.TagsURL,
}

func newCategoriesCommand() *cobra.Command {
	return categoryCommands.command(newCategoriesPickCommand())
}

func newTagsCommand() *cobra.Command {
	return tagCommands.command(newTagsPickCommand())
}

// newCategoriesPickCommand runs one search-as-you-type query, as the
// category selector does for each keystroke
func newCategoriesPickCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pick TERM",
		Short: "Search categories by name and print the matching options",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := getCliContext(cmd)

			picker := client.NewSearchPicker[client.Category](cliCtx.API.Categories, client.CategoryOption, 0)
			options, err := picker.Search(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to search categories: %w", err)
			}

			if len(options) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No matching categories")
				return nil
			}
			return printOptions(cmd.OutOrStdout(), options)
		},
	}
}

// newTagsPickCommand loads successive pages of matching tags, as the
// multi-select tag selector does while scrolling
func newTagsPickCommand() *cobra.Command {
	var pages int

	cmd := &cobra.Command{
		Use:   "pick TERM",
		Short: "Search tags by name, loading up to --pages pages of options",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := getCliContext(cmd)

			if pages < 1 {
				return fmt.Errorf("--pages must be at least 1")
			}

			picker := client.NewPagedPicker[client.Tag](cliCtx.API.Tags, client.TagOption)
			var options []client.Option
			for i := 0; i < pages && picker.HasMore(); i++ {
				var err error
				options, err = picker.LoadMore(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("failed to search tags: %w", err)
				}
			}

			out := cmd.OutOrStdout()
			if len(options) == 0 {
				fmt.Fprintln(out, "No matching tags")
				return nil
			}
			if err := printOptions(out, options); err != nil {
				return err
			}
			if picker.HasMore() {
				fmt.Fprintf(out, "\nMore tags available (use --pages %d)\n", pages+1)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&pages, "pages", 1, "Number of pages to load")

	return cmd
}

func printOptions(out io.Writer, options []client.Option) error {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME")
	for _, opt := range options {
		fmt.Fprintf(w, "%d\t%s\n", opt.Value, opt.Label)
	}
	return w.Flush()
}
