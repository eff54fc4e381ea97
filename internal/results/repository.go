package results

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/agbru/mandelarea/internal/blob"
	apperrors "github.com/agbru/mandelarea/internal/errors"
	"github.com/agbru/mandelarea/internal/sampling"
)

const seriesContentType = "text/plain; charset=utf-8"

// maxTrueAreaSize bounds the bytes read from the reference area file.
const maxTrueAreaSize = 4 << 10

// Repository reads and writes series and the reference area through a blob
// store.
type Repository struct {
	store blob.Store
}

// NewRepository returns a Repository backed by store.
func NewRepository(store blob.Store) *Repository {
	return &Repository{store: store}
}

// Store returns the underlying blob store.
func (r *Repository) Store() blob.Store { return r.store }

// SaveSeries replaces the series of method in experiment e with records.
func (r *Repository) SaveSeries(ctx context.Context, e Experiment, method sampling.Method, records []Record) (blob.Info, error) {
	key := SeriesKey(e, method)
	var buf bytes.Buffer
	if err := WriteSeries(&buf, records); err != nil {
		return blob.Info{}, apperrors.StorageError{Op: "encode", Key: key, Cause: err}
	}
	info, err := r.store.Put(ctx, key, &buf, blob.PutOptions{
		ContentType: seriesContentType,
		Metadata: map[string]string{
			"experiment": string(e),
			"method":     string(method),
		},
	})
	if err != nil {
		return blob.Info{}, apperrors.StorageError{Op: "put", Key: key, Cause: err}
	}
	return info, nil
}

// LoadSeries reads the series of method in experiment e. A missing series
// yields blob.ErrNotFound wrapped in a StorageError.
func (r *Repository) LoadSeries(ctx context.Context, e Experiment, method sampling.Method) ([]Record, error) {
	key := SeriesKey(e, method)
	_, rc, err := r.store.Get(ctx, key)
	if err != nil {
		return nil, apperrors.StorageError{Op: "get", Key: key, Cause: err}
	}
	defer func() { _ = rc.Close() }()
	records, err := ReadSeries(rc)
	if err != nil {
		return nil, apperrors.StorageError{Op: "decode", Key: key, Cause: err}
	}
	return records, nil
}

// SaveTrueArea writes the reference area.
func (r *Repository) SaveTrueArea(ctx context.Context, area float64) error {
	_, err := r.store.Put(ctx, TrueAreaKey, bytes.NewBufferString(FormatTrueArea(area)), blob.PutOptions{
		ContentType: seriesContentType,
	})
	if err != nil {
		return apperrors.StorageError{Op: "put", Key: TrueAreaKey, Cause: err}
	}
	return nil
}

// LoadTrueArea returns the cached reference area. ok is false when nothing
// usable is cached: the file is missing or its content does not parse. Only
// store failures other than a missing key are returned as errors.
func (r *Repository) LoadTrueArea(ctx context.Context) (area float64, ok bool, err error) {
	_, rc, err := r.store.Get(ctx, TrueAreaKey)
	if errors.Is(err, blob.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, apperrors.StorageError{Op: "get", Key: TrueAreaKey, Cause: err}
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(io.LimitReader(rc, maxTrueAreaSize))
	if err != nil {
		return 0, false, apperrors.StorageError{Op: "read", Key: TrueAreaKey, Cause: err}
	}
	v, perr := ParseTrueArea(string(data))
	if perr != nil {
		return 0, false, nil
	}
	return v, true, nil
}

// List returns the series present for experiment e, keyed by method.
func (r *Repository) List(ctx context.Context, e Experiment) (map[sampling.Method]blob.Info, error) {
	out := make(map[sampling.Method]blob.Info)
	for _, m := range sampling.Methods {
		key := SeriesKey(e, m)
		info, err := r.store.Head(ctx, key)
		if errors.Is(err, blob.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, apperrors.StorageError{Op: "head", Key: key, Cause: err}
		}
		out[m] = info
	}
	return out, nil
}
