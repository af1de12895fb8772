package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/aisa-it/aiforms/internal/aiforms/coercion"
	"github.com/aisa-it/aiforms/internal/aiforms/dto"
	"github.com/aisa-it/aiforms/internal/aiforms/submission"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	answersFile string
	emailCopy   string
)

// submitCmd fills a form from a YAML answers file
var submitCmd = &cobra.Command{
	Use:   "submit <template-id>",
	Short: "Fill and submit a form",
	Long: `Submit a form for a template. Answers are read from a YAML file keyed
by question id or question title:

  Rate us: 5
  Comment: "Fast delivery"
  Colors: [Red, Blue]
  Subscribe: true

Missing questions are sent as empty answers.`,
	Args: cobra.ExactArgs(1),
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().StringVarP(&answersFile, "answers", "f", "", "Answers YAML file")
	submitCmd.Flags().StringVar(&emailCopy, "email-copy", "", "Send a copy of the answers to this address")
	submitCmd.MarkFlagRequired("answers")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(answersFile)
	if err != nil {
		return err
	}

	s, done, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer done()

	tmpl, err := s.GetTemplate(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	values, err := parseAnswers(data, tmpl.Questions)
	if err != nil {
		return err
	}

	submitter := submission.NewSubmitter(s, nil)
	defer submitter.Close()

	form, err := submitter.Submit(cmd.Context(), tmpl, submission.Request{
		TemplateID:    tmpl.ID,
		Values:        values,
		SendEmailCopy: emailCopy != "",
		EmailAddress:  emailCopy,
	})
	if err != nil {
		var fieldErrs submission.FieldErrors
		if errors.As(err, &fieldErrs) {
			return describeFieldErrors(fieldErrs, tmpl.Questions)
		}
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Form %s saved, %s\n", form.ID, submission.SuccessPath(tmpl.ID))
	return nil
}

// parseAnswers сопоставляет ключи файла ответов с вопросами шаблона: сначала по id, затем по названию без учета регистра
func parseAnswers(data []byte, questions []dto.Question) (submission.Values, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse answers: %w", err)
	}

	byID := make(map[string]string, len(questions))
	byTitle := make(map[string]string, len(questions))
	for _, q := range questions {
		byID[q.ID] = q.ID
		byTitle[strings.ToLower(strings.TrimSpace(q.Title))] = q.ID
	}

	values := make(submission.Values, len(raw))
	var unknown []string
	for key, v := range raw {
		id, ok := byID[key]
		if !ok {
			id, ok = byTitle[strings.ToLower(strings.TrimSpace(key))]
		}
		if !ok {
			unknown = append(unknown, key)
			continue
		}
		values[id] = coercion.FromAny(v)
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("unknown questions: %s", strings.Join(unknown, ", "))
	}
	return values, nil
}

func describeFieldErrors(errs submission.FieldErrors, questions []dto.Question) error {
	titles := make(map[string]string, len(questions))
	for _, q := range questions {
		titles[q.ID] = q.Title
	}

	lines := make([]string, 0, len(errs))
	for field, msg := range errs {
		name := field
		if t, ok := titles[field]; ok {
			name = t
		}
		lines = append(lines, fmt.Sprintf("  %s: %s", name, msg))
	}
	sort.Strings(lines)
	return fmt.Errorf("form is not valid:\n%s", strings.Join(lines, "\n"))
}
