package cli

// Options holds the command line of blogmirror.
type Options struct {
	Config   string `long:"config" description:"Path to a YAML config file"`
	Policy   string `long:"policy" description:"What a failed download does to the run" choice:"fail-fast" choice:"best-effort"`
	MaxPath  int    `long:"max-path" description:"Maximum length of a media file path"`
	Verbose  bool   `long:"verbose" description:"Enable debug logging"`
	JSON     bool   `long:"json" description:"Print the final summary as JSON"`
	NoLedger bool   `long:"no-ledger" description:"Do not record the run in the destination ledger"`
	Version  bool   `long:"version" description:"Show version and exit"`

	Args struct {
		URL         string `positional-arg-name:"url" description:"First page of the blog archive"`
		Destination string `positional-arg-name:"destination" description:"Existing directory to mirror into"`
	} `positional-args:"yes" required:"yes"`
}
