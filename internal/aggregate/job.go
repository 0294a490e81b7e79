package aggregate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/KaramelBytes/enrolstat/internal/csvstream"
	"github.com/KaramelBytes/enrolstat/internal/source"
	"github.com/google/uuid"
)

// Options configures a job.
type Options struct {
	// ChunkSize is the number of records per chunk. 0 uses csvstream.DefaultChunkSize.
	ChunkSize int
	// Delimiter for fields. 0 sniffs per source.
	Delimiter rune
	Logger    *slog.Logger
	Metrics   *Metrics
	// JobID identifies the run; a random UUID when empty.
	JobID string
	// OnSource is called before source i (0-based) of n is read.
	OnSource func(i, n int, name string)
	// Now supplies the result timestamp; time.Now when nil.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.ChunkSize <= 0 {
		o.ChunkSize = csvstream.DefaultChunkSize
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.JobID == "" {
		o.JobID = uuid.NewString()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Run aggregates sources strictly in order, one chunk at a time. ctx is
// checked between chunks; on cancellation or any failure the partial state is
// discarded and no result is returned.
func Run(ctx context.Context, sources []source.RawSource, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	log := opts.Logger.With("job", opts.JobID)
	if len(sources) == 0 {
		opts.Metrics.job("empty")
		return nil, ErrEmptyResult
	}
	acc := NewAccumulator(opts)
	for i, src := range sources {
		if opts.OnSource != nil {
			opts.OnSource(i, len(sources), src.String())
		}
		rows, err := consumeSource(ctx, acc, src, opts)
		if err != nil {
			acc.Fail(err)
			opts.Metrics.job(outcome(err))
			log.Warn("job aborted", "source", src.String(), "error", err)
			return nil, err
		}
		acc.addSource(src.String())
		opts.Metrics.source()
		log.Info("source read", "source", src.String(), "rows", rows)
	}
	r, err := acc.Finalize(opts.Now())
	if err != nil {
		opts.Metrics.job(outcome(err))
		return nil, err
	}
	opts.Metrics.job("ok")
	log.Debug("job finalized", "groups", len(r.Groups), "records", r.RecordsProcessed, "skipped", r.RecordsSkipped)
	return r, nil
}

func consumeSource(ctx context.Context, acc *Accumulator, src source.RawSource, opts Options) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	rc, err := src.Open()
	if err != nil {
		return 0, &SourceReadError{Source: src.String(), Err: err}
	}
	defer rc.Close()

	st, err := csvstream.Open(rc, csvstream.Options{ChunkSize: opts.ChunkSize, Delimiter: opts.Delimiter})
	if err != nil {
		return 0, &SourceReadError{Source: src.String(), Err: err}
	}
	if len(st.Fields()) == 0 {
		opts.Logger.Warn("source has no header", "source", src.String())
	}
	for {
		if err := ctx.Err(); err != nil {
			return st.Rows(), err
		}
		b, err := st.Next()
		if errors.Is(err, io.EOF) {
			return st.Rows(), nil
		}
		if err != nil {
			return st.Rows(), &SourceReadError{Source: src.String(), Err: err}
		}
		if err := acc.Consume(b); err != nil {
			return st.Rows(), err
		}
	}
}

func outcome(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, ErrSchemaDetection):
		return "schema"
	case errors.Is(err, ErrEmptyResult):
		return "empty"
	case errors.Is(err, ErrSourceRead):
		return "read"
	default:
		return "error"
	}
}
