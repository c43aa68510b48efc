package gradesheet

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/ukaji3/gradesheet-go/pkg/gradesheet/parser"
	"github.com/ukaji3/gradesheet-go/pkg/gradesheet/printparse"
)

// Config describes one course's grading spreadsheet.
type Config struct {
	// SpreadsheetID is the backend document key.
	SpreadsheetID string
	// LabTitle codes a lab number to its worksheet title, e.g. 1 -> "Lab 1".
	// Worksheet titles that do not parse belong to unrelated sheets and are
	// ignored.
	LabTitle printparse.PrinterParser[int, string]
	// Labs yields the per-lab sheet configuration.
	Labs func(lab int) LabConfig
	// Template optionally names the worksheet duplicated when a new lab
	// sheet is created. Nil means the preceding lab's worksheet is used.
	Template *TemplateRef
	// Logger receives parse notices and overwrite warnings. Nil means the
	// standard logger.
	Logger logrus.FieldLogger
}

// TemplateRef names a template worksheet, possibly in another document.
type TemplateRef struct {
	// SpreadsheetID is the document holding the template; empty means the
	// course spreadsheet itself.
	SpreadsheetID string
	Title         string
}

// LabConfig is the per-lab worksheet configuration.
type LabConfig struct {
	parser.SheetConfig
	// OutcomeCoding codes a grading outcome to the score cell text, e.g.
	// 1 -> "pass".
	OutcomeCoding printparse.PrinterParser[int, string]
	// IncludeGroupsWithoutSubmission keeps rows for groups that have not
	// submitted anything yet.
	IncludeGroupsWithoutSubmission bool
}

func (c Config) log() logrus.FieldLogger {
	if c.Logger != nil {
		return c.Logger
	}
	return logrus.StandardLogger()
}

func (c Config) labConfig(lab int) LabConfig {
	cfg := c.Labs(lab)
	if cfg.Logger == nil {
		cfg.Logger = c.Logger
	}
	return cfg
}

// TemplateSpec describes an IntTemplate in configuration files.
type TemplateSpec struct {
	Prefix string `yaml:"prefix"`
	Suffix string `yaml:"suffix"`
	Offset int    `yaml:"offset"`
	Width  int    `yaml:"width"`
}

func (t TemplateSpec) PrinterParser() printparse.IntTemplate {
	return printparse.IntTemplate{Prefix: t.Prefix, Suffix: t.Suffix, Offset: t.Offset, Width: t.Width}
}

// PatternSpec describes a Pattern in configuration files.
type PatternSpec struct {
	// Match is a regular expression with exactly one capture group.
	Match string `yaml:"match"`
	// Format is the printing format, default "%s".
	Format string `yaml:"format"`
}

func (p PatternSpec) PrinterParser() (printparse.Pattern, error) {
	return printparse.NewPattern(p.Match, p.Format)
}

// HeadersSpec is the on-disk header configuration.
type HeadersSpec struct {
	Group          string       `yaml:"group"`
	Query          TemplateSpec `yaml:"query"`
	Grader         string       `yaml:"grader"`
	Score          string       `yaml:"score"`
	LastSubmission string       `yaml:"last_submission"`
}

// FileConfig is the on-disk YAML course configuration.
type FileConfig struct {
	SpreadsheetID string       `yaml:"spreadsheet_id"`
	LabTitle      TemplateSpec `yaml:"lab_title"`
	Template      *struct {
		SpreadsheetID string `yaml:"spreadsheet_id"`
		Title         string `yaml:"title"`
	} `yaml:"template"`
	Headers   HeadersSpec    `yaml:"headers"`
	GroupCode PatternSpec    `yaml:"group_code"`
	Outcomes  map[int]string `yaml:"outcomes"`
	// IgnoreRows are one-based row numbers, matching what an operator sees
	// in the spreadsheet UI.
	IgnoreRows                     []int `yaml:"ignore_rows"`
	IncludeGroupsWithoutSubmission bool  `yaml:"include_groups_without_submission"`
}

// LoadConfig reads a YAML course configuration. Every lab shares the file's
// sheet layout; callers needing per-lab differences build a Config directly.
func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var fc FileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return fc.Config()
}

// Config assembles the runtime configuration from the file form.
func (fc FileConfig) Config() (Config, error) {
	if fc.SpreadsheetID == "" {
		return Config{}, fmt.Errorf("config: spreadsheet_id is required")
	}
	if fc.Headers.Group == "" || fc.Headers.Grader == "" || fc.Headers.Score == "" {
		return Config{}, fmt.Errorf("config: headers.group, headers.grader and headers.score are required")
	}
	groupCoding, err := fc.GroupCode.PrinterParser()
	if err != nil {
		return Config{}, fmt.Errorf("config: group_code: %w", err)
	}
	outcomeCoding, err := outcomeCoding(fc.Outcomes)
	if err != nil {
		return Config{}, fmt.Errorf("config: outcomes: %w", err)
	}

	ignore := make(map[int]bool, len(fc.IgnoreRows))
	for _, r := range fc.IgnoreRows {
		ignore[r-1] = true
	}

	lab := LabConfig{
		SheetConfig: parser.SheetConfig{
			GroupCoding:          groupCoding,
			GroupHeader:          fc.Headers.Group,
			QueryHeader:          fc.Headers.Query.PrinterParser(),
			GraderHeader:         fc.Headers.Grader,
			ScoreHeader:          fc.Headers.Score,
			LastSubmissionHeader: fc.Headers.LastSubmission,
			IgnoreRows:           ignore,
		},
		OutcomeCoding:                  outcomeCoding,
		IncludeGroupsWithoutSubmission: fc.IncludeGroupsWithoutSubmission,
	}

	cfg := Config{
		SpreadsheetID: fc.SpreadsheetID,
		LabTitle:      fc.LabTitle.PrinterParser(),
		Labs:          func(int) LabConfig { return lab },
	}
	if fc.Template != nil {
		cfg.Template = &TemplateRef{SpreadsheetID: fc.Template.SpreadsheetID, Title: fc.Template.Title}
	}
	return cfg, nil
}

// outcomeCoding builds the outcome printer-parser from the label table.
// Labels must be distinct for parsing to be well-defined.
func outcomeCoding(labels map[int]string) (printparse.PrinterParser[int, string], error) {
	if len(labels) == 0 {
		return nil, nil
	}
	byLabel := make(map[string]int, len(labels))
	for outcome, label := range labels {
		if prev, dup := byLabel[label]; dup {
			return nil, fmt.Errorf("label %q used for both %d and %d", label, prev, outcome)
		}
		byLabel[label] = outcome
	}
	return printparse.Func[int, string]{
		PrintFunc: func(outcome int) string {
			return labels[outcome]
		},
		ParseFunc: func(label string) (int, error) {
			outcome, ok := byLabel[label]
			if !ok {
				return 0, fmt.Errorf("%q is not a known outcome label", label)
			}
			return outcome, nil
		},
	}, nil
}
