package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/Paintersrp/procwarden/internal/config"
	"github.com/Paintersrp/procwarden/internal/hooks"
	"github.com/Paintersrp/procwarden/internal/supervise"
)

func reportSummary(cfg *config.Config, summary *supervise.Summary, stderr io.Writer) error {
	if summary == nil {
		return nil
	}
	format := cfg.Output.Summary
	if format != config.SummaryNone {
		if err := renderSummary(stderr, format, summary); err != nil {
			return fmt.Errorf("render summary: %w", err)
		}
	}
	if cfg.Output.SummaryFile != "" {
		fileFormat := format
		if fileFormat == config.SummaryNone {
			fileFormat = config.SummaryJSON
		}
		if err := hooks.WriteAtomic(cfg.Output.SummaryFile, func(w io.Writer) error {
			return renderSummary(w, fileFormat, summary)
		}); err != nil {
			return fmt.Errorf("write summary file: %w", err)
		}
	}
	return nil
}

func renderSummary(w io.Writer, format string, summary *supervise.Summary) error {
	switch format {
	case config.SummaryText:
		return summary.WriteText(w)
	case config.SummaryJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	case config.SummaryYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(summary); err != nil {
			return err
		}
		return enc.Close()
	case config.SummaryNone:
		return nil
	default:
		return fmt.Errorf("unsupported summary format %q", format)
	}
}
