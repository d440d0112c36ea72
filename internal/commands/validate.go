package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/paulexconde/surveyflow/internal/flow"
	"github.com/paulexconde/surveyflow/internal/services"
	"github.com/paulexconde/surveyflow/internal/surveyfile"
	"github.com/spf13/cobra"
)

var errInvalidSurvey = errors.New("one or more surveys failed validation")

var (
	validateFormat  string
	validateSurveys []int64
)

var validateCmd = &cobra.Command{
	Use:   "validate [survey-file...]",
	Short: "Check survey graphs for cycles and configuration defects",
	Long: `Validate survey definitions from files (.hcl, .json, .yaml) or from the database.

Examples:
  flowctl validate onboarding.hcl
  flowctl validate surveys/*.yaml --format json
  flowctl validate --survey 12 --survey 13`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validateFormat, "format", "text", "Output format: text, json")
	validateCmd.Flags().Int64SliceVar(&validateSurveys, "survey", nil, "Survey id to validate from the database (repeatable)")
}

type reportEntry struct {
	Source string `json:"source"`
	*flow.StructureReport
	Error string `json:"error,omitempty"`
}

func (e reportEntry) valid() bool {
	return e.Error == "" && e.StructureReport != nil && e.Valid
}

func runValidate(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && len(validateSurveys) == 0 {
		return fmt.Errorf("nothing to validate: pass survey files or --survey ids")
	}
	if validateFormat != "text" && validateFormat != "json" {
		return fmt.Errorf("unsupported format: %s (use 'text' or 'json')", validateFormat)
	}

	var entries []reportEntry

	for _, path := range args {
		entries = append(entries, validateFile(path))
	}

	if len(validateSurveys) > 0 {
		dbEntries, err := validateStored(cmd, validateSurveys)
		if err != nil {
			return err
		}
		entries = append(entries, dbEntries...)
	}

	if err := writeReports(cmd.OutOrStdout(), validateFormat, entries); err != nil {
		return err
	}

	for _, e := range entries {
		if !e.valid() {
			return errInvalidSurvey
		}
	}
	return nil
}

func validateFile(path string) reportEntry {
	entry := reportEntry{Source: path}

	def, err := surveyfile.Load(path)
	if err != nil {
		entry.Error = err.Error()
		return entry
	}

	g, err := def.Graph()
	if err != nil {
		entry.Error = err.Error()
		return entry
	}

	entry.StructureReport = flow.ValidateStructure(g)
	return entry
}

func validateStored(cmd *cobra.Command, ids []int64) ([]reportEntry, error) {
	ctx := cmd.Context()

	store, db, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	reports, err := services.NewSurveyService(store, appConfig.Validation).ValidateSurveys(ctx, ids)

	entries := make([]reportEntry, 0, len(ids))
	for _, id := range ids {
		entry := reportEntry{Source: fmt.Sprintf("survey %d", id)}
		if report, ok := reports[id]; ok {
			entry.StructureReport = report
		} else if err != nil {
			entry.Error = "could not be validated"
		}
		entries = append(entries, entry)
	}

	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), err)
	}
	return entries, nil
}

func writeReports(w io.Writer, format string, entries []reportEntry) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	for _, e := range entries {
		switch {
		case e.Error != "":
			fmt.Fprintf(w, "%s: error: %s\n", e.Source, e.Error)
		case e.Valid:
			fmt.Fprintf(w, "%s: valid (endpoints: %s)\n", e.Source, joinIDs(e.Endpoints))
		default:
			fmt.Fprintf(w, "%s: invalid\n", e.Source)
			for _, msg := range e.Errors {
				fmt.Fprintf(w, "  - %s\n", msg)
			}
		}
	}
	return nil
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, ", ")
}
