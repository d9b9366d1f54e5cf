package statuscheck

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/okian/gcpstatus/internal/adapters/backend"
	"github.com/okian/gcpstatus/internal/domain/view"
	"github.com/okian/gcpstatus/pkg/logger"
)

// Result is the outcome of one check.
type Result struct {
	Cards   []view.Card  `json:"cards"`
	Summary view.Summary `json:"summary"`
	Error   string       `json:"error,omitempty"`
}

// ExitCode maps the result onto the process exit status.
func (r Result) ExitCode() int {
	switch {
	case r.Error != "":
		return ExitFailed
	case r.Summary.Healthy == r.Summary.Total():
		return ExitHealthy
	default:
		return ExitDegraded
	}
}

// Runner performs the check against a Fetcher.
type Runner struct {
	fetcher backend.Fetcher
	logger  logger.Logger
}

// NewRunner creates a runner. When f is nil a backend client is built from
// cfg.
func NewRunner(cfg *Config, f backend.Fetcher, l logger.Logger) *Runner {
	if l == nil {
		l = logger.Nop()
	}
	if f == nil {
		f = backend.New(cfg.BackendURL,
			backend.WithTimeout(cfg.Timeout),
			backend.WithLogger(l.Named("backend")),
			backend.WithUserAgent("gcpstatus-statuscheck/1.0"),
		)
	}
	return &Runner{fetcher: f, logger: l}
}

// Run fetches once and builds the seven cards. A failed fetch is reported in
// Result.Error with every card unknown.
func (r *Runner) Run(ctx context.Context, apiKey string) Result {
	m, err := r.fetcher.Fetch(ctx, apiKey)
	cards := view.BuildGrid(m)
	res := Result{Cards: cards, Summary: view.Summarize(cards)}
	if err != nil {
		res.Error = err.Error()
		r.logger.Error(ctx, "status check failed", logger.Error(err))
		return res
	}
	r.logger.Info(ctx, "status check finished",
		logger.Int("healthy", res.Summary.Healthy),
		logger.Int("unhealthy", res.Summary.Unhealthy),
		logger.Int("unknown", res.Summary.Unknown),
	)
	return res
}

// WriteTable prints one line per service.
func WriteTable(w io.Writer, res Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "SERVICE\tSTATUS\tLATENCY\tERROR")
	for _, c := range res.Cards {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.DisplayName, c.StatusText, c.Latency, c.Error)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("write table: %w", err)
	}
	_, err := fmt.Fprintf(w, "\n%d healthy, %d unhealthy, %d unknown\n",
		res.Summary.Healthy, res.Summary.Unhealthy, res.Summary.Unknown)
	if res.Error != "" {
		_, err = fmt.Fprintf(w, "fetch failed: %s\n", res.Error)
	}
	return err
}

// WriteJSON prints the result as indented JSON.
func WriteJSON(w io.Writer, res Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
