package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/aisa-it/aiforms/internal/aiforms/aggregation"
	"github.com/aisa-it/aiforms/internal/aiforms/dto"
	"github.com/aisa-it/aiforms/internal/aiforms/editor"
	"github.com/aisa-it/aiforms/internal/aiforms/search"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	searchLimit int
	searchAll   bool

	listPage  int
	listLimit int

	templateFile string
)

// searchCmd runs a full-text template search with load-more paging
var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search templates",
	Long: `Search templates by title, description, questions, comments and tags.

Prints the first page. Use --all to keep loading pages until every match is shown.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSearch,
}

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Manage templates",
}

var templatesMineCmd = &cobra.Command{
	Use:   "mine",
	Short: "List templates created by the current user",
	RunE:  runTemplatesMine,
}

var templatesShowCmd = &cobra.Command{
	Use:   "show <template-id>",
	Short: "Show a template with its questions",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplatesShow,
}

var templatesCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a template from a YAML or JSON file",
	Long: `Create a template from a file with the same fields as the API payload:

  title: Feedback
  topic: Survey
  access: PUBLIC
  tags: [feedback]
  questions:
    - title: Rate us
      type: INTEGER
      isRequired: true

Questions are renumbered in file order (or by their order field), empty
option labels are dropped and showInTable defaults to true. The template is
checked locally and nothing is sent when it has errors.`,
	RunE: runTemplatesCreate,
}

var templatesFormsCmd = &cobra.Command{
	Use:   "forms <template-id>",
	Short: "Show the responses table of a template",
	Long: `Show one page of the responses table: row number, respondent and the
answers to the questions marked to show in the table. Row numbers continue
across pages.`,
	Args: cobra.ExactArgs(1),
	RunE: runTemplatesForms,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", search.DefaultLimit, "Page size")
	searchCmd.Flags().BoolVarP(&searchAll, "all", "a", false, "Load every page")

	for _, c := range []*cobra.Command{templatesMineCmd, templatesFormsCmd} {
		c.Flags().IntVar(&listPage, "page", 1, "Page number")
		c.Flags().IntVar(&listLimit, "limit", 10, "Page size")
	}

	templatesCreateCmd.Flags().StringVarP(&templateFile, "file", "f", "", "Template file")
	templatesCreateCmd.MarkFlagRequired("file")

	templatesCmd.AddCommand(templatesMineCmd)
	templatesCmd.AddCommand(templatesShowCmd)
	templatesCmd.AddCommand(templatesCreateCmd)
	templatesCmd.AddCommand(templatesFormsCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	s, done, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer done()

	query := ""
	if len(args) > 0 {
		query = args[0]
	}

	acc := search.NewAccumulator(s, searchLimit)
	if err := acc.Search(cmd.Context(), query); err != nil {
		return err
	}
	for searchAll && acc.HasMore() {
		n, err := acc.LoadMore(cmd.Context())
		if err != nil {
			return err
		}
		if n == 0 {
			break
		}
	}

	out := cmd.OutOrStdout()
	printTemplates(out, acc.Items())
	fmt.Fprintf(out, "\nshown %d of %d\n", len(acc.Items()), acc.Total())
	return nil
}

func runTemplatesMine(cmd *cobra.Command, args []string) error {
	s, done, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer done()

	res, err := s.UserTemplates(cmd.Context(), listPage, listLimit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	printTemplates(out, res.Data)
	fmt.Fprintf(out, "\npage %d of %d, total %d\n", res.Page, res.TotalPages, res.Total)
	return nil
}

func runTemplatesShow(cmd *cobra.Command, args []string) error {
	s, done, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer done()

	tmpl, err := s.GetTemplate(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s [%s, %s]\n", tmpl.Title, tmpl.Topic, tmpl.Access)
	if tmpl.Description != "" {
		fmt.Fprintln(out, tmpl.Description)
	}
	if len(tmpl.Tags) > 0 {
		fmt.Fprintf(out, "tags: %s\n", strings.Join(tmpl.Tags, ", "))
	}
	fmt.Fprintf(out, "forms: %d, likes: %d\n\n", tmpl.FormsCount, tmpl.LikesCount)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tREQUIRED\tTITLE\tOPTIONS")
	for _, q := range tmpl.Questions {
		fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%s\n", q.ID, q.Type, q.IsRequired, q.Title, strings.Join(q.Options, " | "))
	}
	return w.Flush()
}

func runTemplatesCreate(cmd *cobra.Command, args []string) error {
	doc, err := readTemplateFile(templateFile)
	if err != nil {
		return err
	}
	if errs := doc.Validate(); len(errs) > 0 {
		out := cmd.ErrOrStderr()
		for _, e := range errs {
			fmt.Fprintf(out, "  %s\n", e.Error())
		}
		return fmt.Errorf("%s: %d errors in template", templateFile, len(errs))
	}

	s, done, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer done()

	tmpl, err := s.CreateTemplate(cmd.Context(), doc.ToNormalizedPayload())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created template %s (%d questions)\n", tmpl.ID, len(tmpl.Questions))
	return nil
}

func runTemplatesForms(cmd *cobra.Command, args []string) error {
	s, done, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer done()

	tmpl, err := s.GetTemplate(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	res, err := s.TemplateForms(cmd.Context(), args[0], listPage, listLimit)
	if err != nil {
		return err
	}

	pager := aggregation.NewPager(res.Total, res.Limit)
	if listPage != pager.Page && !pager.GoTo(listPage) {
		return fmt.Errorf("page %d is out of range, template has %d pages of forms", listPage, pager.TotalPages())
	}

	header, rows := aggregation.Build(tmpl, res.Data, pager.Page, pager.PageSize, true).Grid()
	out := cmd.OutOrStdout()
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(header, "\t"))
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\npage %d of %d, total %d\n", pager.Page, pager.TotalPages(), pager.Total)
	return nil
}

func printTemplates(out io.Writer, templates []dto.TemplateLight) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tTOPIC\tAUTHOR\tFORMS\tLIKES")
	for _, t := range templates {
		author := "-"
		if t.Author != nil {
			author = t.Author.Name
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\n", t.ID, t.Title, t.Topic, author, t.FormsCount, t.LikesCount)
	}
	w.Flush()
}

// fileTemplate - шаблон в файле. Ключи совпадают с полями JSON тела запроса.
type fileTemplate struct {
	dto.TemplatePayload
	Questions []fileQuestion `json:"questions"`
}

// fileQuestion отличает отсутствующий showInTable от false
type fileQuestion struct {
	dto.QuestionPayload
	ShowInTable *bool `json:"showInTable"`
}

// readTemplateFile читает шаблон из YAML (или JSON, который тоже является YAML) и собирает его в редакторе.
func readTemplateFile(path string) (*editor.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f fileTemplate
	if err := yamlToJSON(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return f.document()
}

func (f fileTemplate) document() (*editor.Document, error) {
	doc := editor.New()
	doc.Title = f.Title
	doc.Description = f.Description
	doc.Topic = f.Topic
	doc.ImageURL = f.ImageURL
	if f.Access != "" {
		if err := doc.SetAccess(f.Access, f.AllowedUsers...); err != nil {
			return nil, err
		}
	}
	doc.SetTags(f.Tags...)

	questions := slices.Clone(f.Questions)
	slices.SortStableFunc(questions, func(a, b fileQuestion) int { return a.Order - b.Order })
	for _, fq := range questions {
		idx, err := doc.AddQuestion(fq.Type)
		if err != nil {
			return nil, fmt.Errorf("question %q: %w", fq.Title, err)
		}
		err = doc.UpdateQuestion(idx, func(q *editor.Question) {
			q.Title = fq.Title
			q.Description = fq.Description
			q.IsRequired = fq.IsRequired
			if fq.ShowInTable != nil {
				q.ShowInTable = *fq.ShowInTable
			}
			if fq.Options != nil {
				q.Options = slices.Clone(fq.Options)
			}
		})
		if err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// yamlToJSON декодирует YAML в структуру с json тегами
func yamlToJSON(data []byte, out any) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
