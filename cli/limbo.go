package cli

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/georgepadayatti/certpath/limbo"
)

// LimboOptions contains options for the limbo command.
type LimboOptions struct {
	JSON        bool
	Verbose     bool
	FailOnError bool
}

// LimboCommand implements the 'limbo' command.
func LimboCommand(args []string) {
	limboFlags := flag.NewFlagSet("limbo", flag.ExitOnError)

	var opts LimboOptions

	limboFlags.BoolVar(&opts.JSON, "json", false, "Output results in JSON format")
	limboFlags.BoolVar(&opts.Verbose, "verbose", false, "Show every testcase result, not only failures")
	limboFlags.BoolVar(&opts.FailOnError, "fail-on-error", true, "Exit non-zero when any testcase fails")

	limboFlags.Usage = func() {
		fmt.Printf("Usage: %s limbo [options] <limbo.json>\n\n", os.Args[0])
		fmt.Println("Run an x509-limbo conformance corpus against the verifier.")
		fmt.Println("")
		fmt.Println("Arguments:")
		fmt.Println("  limbo.json  Corpus file in limbo JSON format")
		fmt.Println("")
		fmt.Println("Options:")
		limboFlags.PrintDefaults()
	}

	if err := limboFlags.Parse(args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		osExit(1)
	}

	if len(limboFlags.Args()) < 1 {
		limboFlags.Usage()
		osExit(1)
	}

	corpus, err := limbo.LoadFile(limboFlags.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		osExit(1)
	}

	summary := limbo.RunAll(corpus)

	if opts.JSON {
		outputLimboJSON(summary)
	} else {
		outputLimboText(summary, opts.Verbose)
	}

	if opts.FailOnError && summary.Failed > 0 {
		osExit(1)
	}
}

// LimboResultJSON is a JSON-serializable testcase result.
type LimboResultJSON struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
	Error  string `json:"error,omitempty"`
}

// LimboSummaryJSON is a JSON-serializable corpus summary.
type LimboSummaryJSON struct {
	Passed  int               `json:"passed"`
	Failed  int               `json:"failed"`
	Skipped int               `json:"skipped"`
	Results []LimboResultJSON `json:"results"`
}

func outputLimboJSON(summary *limbo.Summary) {
	out := LimboSummaryJSON{
		Passed:  summary.Passed,
		Failed:  summary.Failed,
		Skipped: summary.Skipped,
	}
	for _, result := range summary.Results {
		entry := LimboResultJSON{
			ID:     result.ID,
			Status: result.Status.String(),
			Reason: result.Reason,
		}
		if result.Err != nil {
			entry.Error = result.Err.Error()
		}
		out.Results = append(out.Results, entry)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		osExit(1)
	}
	fmt.Println(string(data))
}

func outputLimboText(summary *limbo.Summary, verbose bool) {
	for _, result := range summary.Results {
		switch result.Status {
		case limbo.StatusFail:
			fmt.Printf("FAIL %s: %v\n", result.ID, result.Err)
		case limbo.StatusSkip:
			if verbose {
				fmt.Printf("SKIP %s: %s\n", result.ID, result.Reason)
			}
		case limbo.StatusPass:
			if verbose {
				fmt.Printf("PASS %s\n", result.ID)
			}
		}
	}
	fmt.Printf("%d passed, %d failed, %d skipped (%d total)\n",
		summary.Passed, summary.Failed, summary.Skipped, summary.Total())
}
