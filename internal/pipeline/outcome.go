package pipeline

// Action records what the pipeline did with a single file.
type Action string

const (
	ActionConverted Action = "converted" // decoded, resized, re-encoded
	ActionCopied    Action = "copied"    // passed through byte for byte
	ActionKept      Action = "kept"      // left in place unchanged (overwrite mode)
	ActionError     Action = "error"     // no output produced
)

// Via names the stage that produced the output, for logging and summaries.
type Via string

const (
	ViaEngine      Via = "engine"          // in-process codec engine, target format
	ViaTool        Via = "tool"            // platform tool fallback
	ViaToolJPEG    Via = "tool-jpeg"       // platform tool forced to JPEG
	ViaFallbackFmt Via = "fallback-format" // second-choice format encode
	ViaCopy        Via = "copy"            // byte-for-byte passthrough
)

// Outcome is the per-file result. Exactly one of Dest/Err is meaningful for
// terminal states: converted and copied files have a Dest, errors have Err.
type Outcome struct {
	Source   string
	Dest     string
	Action   Action
	Via      Via
	Err      error
	InBytes  int64
	OutBytes int64
}

// RunSummary aggregates outcomes for a whole batch run.
type RunSummary struct {
	Converted int
	Copied    int
	Kept      int
	Errors    int

	TotalInputBytes  int64
	TotalOutputBytes int64

	Results []Outcome
}

// Total returns how many files the run attempted.
func (s *RunSummary) Total() int {
	return s.Converted + s.Copied + s.Kept + s.Errors
}

// SpaceSaved returns the aggregate byte difference between inputs and
// outputs. Positive means outputs are smaller; negative means they grew.
func (s *RunSummary) SpaceSaved() int64 {
	return s.TotalInputBytes - s.TotalOutputBytes
}

func (s *RunSummary) add(o Outcome) {
	switch o.Action {
	case ActionConverted:
		s.Converted++
	case ActionCopied:
		s.Copied++
	case ActionKept:
		s.Kept++
	default:
		s.Errors++
	}
	s.TotalInputBytes += o.InBytes
	s.TotalOutputBytes += o.OutBytes
	s.Results = append(s.Results, o)
}
