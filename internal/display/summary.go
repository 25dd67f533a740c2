package display

import (
	"github.com/pterm/pterm"

	"github.com/backmassage/picshrink/internal/pipeline"
)

// RenderSummary prints the end-of-run summary table and the space-saved
// line. It writes directly to stdout and is skipped under JSON logging.
func RenderSummary(s *pipeline.RunSummary) {
	data := pterm.TableData{
		{"Converted", pterm.Sprintf("%d", s.Converted)},
		{"Copied", pterm.Sprintf("%d", s.Copied)},
		{"Kept", pterm.Sprintf("%d", s.Kept)},
		{"Errors", pterm.Sprintf("%d", s.Errors)},
		{"Total", pterm.Sprintf("%d", s.Total())},
	}
	_ = pterm.DefaultTable.WithData(data).WithBoxed().Render()

	if s.Converted == 0 {
		return
	}
	saved := s.SpaceSaved()
	ratio := FormatPercent(s.TotalOutputBytes, s.TotalInputBytes)
	if saved >= 0 {
		pterm.Success.Printfln("Space saved: %s, output is %s of input (%s -> %s)",
			FormatBytes(saved), ratio, FormatBytes(s.TotalInputBytes), FormatBytes(s.TotalOutputBytes))
	} else {
		pterm.Warning.Printfln("Output grew: %s, now %s of input (%s -> %s)",
			FormatBytesWithSign(-saved), ratio, FormatBytes(s.TotalInputBytes), FormatBytes(s.TotalOutputBytes))
	}
}

// RenderErrors lists failed files after the summary so they are not lost in
// scrollback. No-op when the run was clean.
func RenderErrors(s *pipeline.RunSummary) {
	if s.Errors == 0 {
		return
	}
	pterm.Error.Printfln("%d file(s) failed:", s.Errors)
	for _, r := range s.Results {
		if r.Action != pipeline.ActionError {
			continue
		}
		detail := "unknown error"
		if r.Err != nil {
			detail = r.Err.Error()
		}
		pterm.Error.Printfln("  %s: %s", r.Source, detail)
	}
}
