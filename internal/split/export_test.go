package split

// Exports for split_test.

var (
	FormatFFmpegTime = formatFFmpegTime
	PartEntry        = partEntry
)

const (
	InputEntry  = inputEntry
	OutputEntry = outputEntry
)

// EncodeArgs exposes Options.encodeArgs.
func (o Options) EncodeArgs() []string { return o.encodeArgs() }
