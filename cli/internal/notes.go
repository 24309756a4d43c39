package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/gosimple/slug"
	"github.com/spf13/cobra"

	"github.com/devilmonastery/notedesk/internal/client"
	"github.com/devilmonastery/notedesk/internal/pkg/urlutil"
)

func newNotesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "notes",
		Aliases: []string{"note"},
		Short:   "Manage notes",
	}

	cmd.AddCommand(newNotesListCommand())
	cmd.AddCommand(newNotesShowCommand())
	cmd.AddCommand(newNotesHistoryCommand())
	cmd.AddCommand(newNotesFavoriteCommand())
	cmd.AddCommand(newNotesCreateCommand())
	cmd.AddCommand(newNotesUpdateCommand())
	cmd.AddCommand(newNotesPatchCommand())
	cmd.AddCommand(newNotesDeleteCommand())

	return cmd
}

func newNotesListCommand() *cobra.Command {
	var (
		page   int
		search string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := getCliContext(cmd)

			result, err := cliCtx.API.Notes.List(cmd.Context(), page, search)
			if err != nil {
				return fmt.Errorf("failed to list notes: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(result.Results) == 0 {
				fmt.Fprintln(out, "No notes found")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tFAV\tSLUG\tTITLE\tCATEGORY\tTAGS\tUPDATED")
			for _, note := range result.Results {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
					note.ID,
					favoriteMark(note.IsFavorite),
					note.Slug,
					note.Title,
					note.Category,
					tagNames(note.Tags),
					note.UpdatedAt.Local().Format("2006-01-02 15:04"),
				)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			printPageFooter(out, page, len(result.Results), result.Count, result.HasNext())
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "Page number (1-based)")
	cmd.Flags().StringVarP(&search, "search", "s", "", "Only show notes matching this text")

	return cmd
}

func newNotesShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show SLUG",
		Short: "Show a note rendered as markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := getCliContext(cmd)

			noteSlug, err := parseSlug(args[0])
			if err != nil {
				return err
			}

			note, err := cliCtx.API.Notes.GetBySlug(cmd.Context(), noteSlug)
			if err != nil {
				return fmt.Errorf("failed to get note: %w", err)
			}

			printMarkdown(cmd.OutOrStdout(), cliCtx.Config, noteMarkdown(note))
			printWebLink(cmd.OutOrStdout(), cliCtx.Config.WebURL(), urlutil.NoteViewURL, note.Slug)
			return nil
		},
	}
}

func newNotesHistoryCommand() *cobra.Command {
	var page int

	cmd := &cobra.Command{
		Use:   "history SLUG",
		Short: "List the revisions of a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := getCliContext(cmd)

			noteSlug, err := parseSlug(args[0])
			if err != nil {
				return err
			}

			result, err := cliCtx.API.Notes.History(cmd.Context(), noteSlug, page)
			if err != nil {
				return fmt.Errorf("failed to get note history: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(result.Results) == 0 {
				fmt.Fprintln(out, "No history recorded")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "REVISION\tDATE\tCHANGE\tTITLE\tREASON")
			for _, rev := range result.Results {
				reason := ""
				if rev.HistoryChangeReason != nil {
					reason = *rev.HistoryChangeReason
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
					rev.HistoryID,
					rev.HistoryDate.Local().Format("2006-01-02 15:04:05"),
					rev.ChangeType(),
					rev.Title,
					reason,
				)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			printPageFooter(out, page, len(result.Results), result.Count, result.HasNext())
			printWebLink(out, cliCtx.Config.WebURL(), urlutil.NoteHistoryURL, noteSlug)
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "Page number (1-based)")

	return cmd
}

func newNotesFavoriteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "favorite ID",
		Short: "Toggle the favorite flag of a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := getCliContext(cmd)

			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			note, err := cliCtx.API.Notes.ToggleFavorite(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("failed to toggle favorite: %w", err)
			}

			if note.IsFavorite {
				fmt.Fprintf(cmd.OutOrStdout(), "★ Note %d marked as favorite\n", note.ID)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "☆ Note %d is no longer a favorite\n", note.ID)
			}
			return nil
		},
	}
}

// noteFlags holds the note fields accepted by create, update and patch
type noteFlags struct {
	title       string
	content     string
	contentFile string
	category    int64
	tags        []int64
	favorite    bool
}

func (f *noteFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.title, "title", "t", "", "Note title")
	cmd.Flags().StringVarP(&f.content, "content", "c", "", "Note content (markdown)")
	cmd.Flags().StringVarP(&f.contentFile, "file", "f", "", "Read content from a file ('-' for stdin)")
	cmd.Flags().Int64Var(&f.category, "category", 0, "Category ID")
	cmd.Flags().Int64SliceVar(&f.tags, "tag", nil, "Tag ID (repeatable)")
	cmd.Flags().BoolVar(&f.favorite, "favorite", false, "Mark as favorite")
	cmd.MarkFlagsMutuallyExclusive("content", "file")
}

// resolveContent loads --file into content when given
func (f *noteFlags) resolveContent(in io.Reader) error {
	if f.contentFile == "" {
		return nil
	}

	var (
		data []byte
		err  error
	)
	if f.contentFile == "-" {
		data, err = io.ReadAll(in)
	} else {
		data, err = os.ReadFile(f.contentFile)
	}
	if err != nil {
		return fmt.Errorf("failed to read content: %w", err)
	}
	f.content = string(data)
	return nil
}

func (f *noteFlags) input() client.NoteInput {
	tags := f.tags
	if tags == nil {
		tags = []int64{}
	}
	return client.NoteInput{
		Title:      f.title,
		Content:    f.content,
		Category:   f.category,
		Tags:       tags,
		IsFavorite: f.favorite,
	}
}

// patch includes only the flags set on the command line
func (f *noteFlags) patch(cmd *cobra.Command) client.NotePatch {
	var p client.NotePatch
	flags := cmd.Flags()
	if flags.Changed("title") {
		p.Title = &f.title
	}
	if flags.Changed("content") || flags.Changed("file") {
		p.Content = &f.content
	}
	if flags.Changed("category") {
		p.Category = &f.category
	}
	if flags.Changed("tag") {
		tags := f.tags
		if tags == nil {
			tags = []int64{}
		}
		p.Tags = &tags
	}
	if flags.Changed("favorite") {
		p.IsFavorite = &f.favorite
	}
	return p
}

func newNotesCreateCommand() *cobra.Command {
	var flags noteFlags

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a note",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := getCliContext(cmd)

			if err := flags.resolveContent(cmd.InOrStdin()); err != nil {
				return err
			}

			note, err := cliCtx.API.Notes.Create(cmd.Context(), flags.input())
			if err != nil {
				return fmt.Errorf("failed to create note: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ Created note %d (%s)\n", note.ID, note.Slug)
			return nil
		},
	}

	flags.register(cmd)
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("category")

	return cmd
}

func newNotesUpdateCommand() *cobra.Command {
	var flags noteFlags

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Replace all fields of a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := getCliContext(cmd)

			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := flags.resolveContent(cmd.InOrStdin()); err != nil {
				return err
			}

			note, err := cliCtx.API.Notes.Update(cmd.Context(), id, flags.input())
			if err != nil {
				return fmt.Errorf("failed to update note: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ Updated note %d (%s)\n", note.ID, note.Slug)
			return nil
		},
	}

	flags.register(cmd)
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("category")

	return cmd
}

func newNotesPatchCommand() *cobra.Command {
	var flags noteFlags

	cmd := &cobra.Command{
		Use:   "patch ID",
		Short: "Change selected fields of a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := getCliContext(cmd)

			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := flags.resolveContent(cmd.InOrStdin()); err != nil {
				return err
			}

			patch := flags.patch(cmd)
			if patch == (client.NotePatch{}) {
				return fmt.Errorf("nothing to change: set at least one of --title, --content, --file, --category, --tag, --favorite")
			}

			note, err := cliCtx.API.Notes.Patch(cmd.Context(), id, patch)
			if err != nil {
				return fmt.Errorf("failed to patch note: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ Patched note %d (%s)\n", note.ID, note.Slug)
			return nil
		},
	}

	flags.register(cmd)

	return cmd
}

func newNotesDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := getCliContext(cmd)

			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			if err := cliCtx.API.Notes.Remove(cmd.Context(), id); err != nil {
				return fmt.Errorf("failed to delete note: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted note %d\n", id)
			return nil
		},
	}
}

// noteMarkdown formats a note as a markdown document
func noteMarkdown(note *client.Note) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", note.Title)
	if note.IsFavorite {
		b.WriteString("★ favorite  \n")
	}
	if note.Category != "" {
		fmt.Fprintf(&b, "**Category:** %s  \n", note.Category)
	}
	if len(note.Tags) > 0 {
		fmt.Fprintf(&b, "**Tags:** %s  \n", tagNames(note.Tags))
	}
	if !note.UpdatedAt.IsZero() {
		fmt.Fprintf(&b, "**Updated:** %s\n", note.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	b.WriteString("\n---\n\n")
	b.WriteString(note.Content)
	if !strings.HasSuffix(note.Content, "\n") {
		b.WriteString("\n")
	}
	return b.String()
}

func tagNames(tags []client.Tag) string {
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.Name
	}
	return strings.Join(names, ", ")
}

func favoriteMark(favorite bool) string {
	if favorite {
		return "★"
	}
	return ""
}

// printWebLink prints a browser link when the context has a web URL
func printWebLink(out io.Writer, webURL string, build func(base, slug string) (string, error), noteSlug string) {
	if webURL == "" {
		return
	}
	link, err := build(webURL, noteSlug)
	if err != nil {
		return
	}
	fmt.Fprintf(out, "Open in browser: %s\n", link)
}

func printPageFooter(out io.Writer, page, shown, total int, hasNext bool) {
	fmt.Fprintf(out, "\nPage %d: %d of %d", page, shown, total)
	if hasNext {
		fmt.Fprintf(out, " (more: --page %d)", page+1)
	}
	fmt.Fprintln(out)
}

// parseSlug checks that s is a note slug (lowercase words joined by dashes
// or underscores)
func parseSlug(s string) (string, error) {
	if !slug.IsSlug(strings.ReplaceAll(s, "_", "-")) {
		return "", fmt.Errorf("invalid note slug %q (expected e.g. %q)", s, slug.Make(s))
	}
	return s, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid id %q: must be a positive integer", s)
	}
	return id, nil
}
