// Package weights loads pretrained checkpoints into nn modules.
//
// A load runs in four steps:
//   - Fetch downloads the checkpoint into a local cache (once per URL)
//   - ReadCheckpoint decodes SafeTensors or torch.save files (zip or legacy)
//   - Filter drops entries the model does not have or whose shape differs
//   - Apply copies what remains into the model in place
//
// Dropped keys are logged and reported; they never fail a load.
package weights

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/born-ml/elannet/internal/nn"
	"github.com/born-ml/elannet/internal/tensor"
)

// Options configures checkpoint fetching and loading.
type Options struct {
	// CacheDir holds downloaded checkpoints. Empty means DefaultCacheDir().
	CacheDir string

	// CheckHash verifies the SHA-256 prefix embedded in the file name
	// (torch.hub convention) after download and before reusing a cached file.
	CheckHash bool

	// Client performs downloads. Nil means a client with no timeout;
	// cancellation goes through the context.
	Client *http.Client

	// Progress receives a download progress bar. Nil disables it.
	Progress io.Writer

	// Logger receives cache, download and dropped-key messages.
	// Nil discards them.
	Logger *log.Logger
}

// DefaultCacheDir returns <user cache dir>/elannet/checkpoints, falling
// back to the system temp dir when the user cache dir is unknown.
func DefaultCacheDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "elannet", "checkpoints")
}

// DefaultOptions returns options that cache under DefaultCacheDir, verify
// hashes and log to stderr.
func DefaultOptions() Options {
	return Options{
		CacheDir:  DefaultCacheDir(),
		CheckHash: true,
		Logger:    log.New(os.Stderr, "elannet: ", log.LstdFlags),
	}
}

func (o Options) withDefaults() Options {
	if o.CacheDir == "" {
		o.CacheDir = DefaultCacheDir()
	}
	if o.Client == nil {
		o.Client = http.DefaultClient
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard, "", 0)
	}
	return o
}

// Mismatch records a checkpoint entry whose shape differs from the model's.
type Mismatch struct {
	Key        string
	Model      tensor.Shape
	Checkpoint tensor.Shape
}

// Report summarizes a filtered load. All lists are sorted by key.
type Report struct {
	Applied    []string   // loaded into the model
	Unexpected []string   // in the checkpoint but not in the model
	Mismatched []Mismatch // in both, with different shapes
	Missing    []string   // in the model but not in the checkpoint; left untouched
}

// Dropped returns the number of checkpoint entries that were not applied.
func (r *Report) Dropped() int {
	return len(r.Unexpected) + len(r.Mismatched)
}

// String returns a one-line summary.
func (r *Report) String() string {
	return fmt.Sprintf("applied %d, unexpected %d, mismatched %d, missing %d",
		len(r.Applied), len(r.Unexpected), len(r.Mismatched), len(r.Missing))
}

// Filter keeps the checkpoint entries that exist in the model with the
// same shape. modelShapes maps every model state-dict key to its shape.
func Filter(modelShapes map[string]tensor.Shape, state map[string]*tensor.RawTensor) (map[string]*tensor.RawTensor, *Report) {
	kept := make(map[string]*tensor.RawTensor, len(state))
	report := &Report{}

	for _, key := range sortedKeys(state) {
		raw := state[key]
		want, ok := modelShapes[key]
		switch {
		case !ok:
			report.Unexpected = append(report.Unexpected, key)
		case !want.Equal(raw.Shape()):
			report.Mismatched = append(report.Mismatched, Mismatch{Key: key, Model: want, Checkpoint: raw.Shape()})
		default:
			kept[key] = raw
			report.Applied = append(report.Applied, key)
		}
	}
	for _, key := range sortedKeys(modelShapes) {
		if _, ok := state[key]; !ok {
			report.Missing = append(report.Missing, key)
		}
	}
	return kept, report
}

// ModelShapes returns the state-dict shapes of m.
func ModelShapes[B tensor.Backend](m nn.Module[B]) map[string]tensor.Shape {
	params := m.Parameters()
	shapes := make(map[string]tensor.Shape, len(params))
	for _, p := range params {
		shapes[p.Name()] = p.Shape()
	}
	return shapes
}

// Apply copies state into the matching parameters of m. Every key must
// name a parameter of m with the same shape (see Filter).
func Apply[B tensor.Backend](m nn.Module[B], state map[string]*tensor.RawTensor) error {
	params := nn.ParameterMap(m)
	for _, key := range sortedKeys(state) {
		p, ok := params[key]
		if !ok {
			return fmt.Errorf("apply %s: not a model parameter", key)
		}
		if err := p.Load(state[key]); err != nil {
			return fmt.Errorf("apply: %w", err)
		}
	}
	return nil
}

// LoadState filters state against m, logs every dropped key, and applies
// the rest.
func LoadState[B tensor.Backend](m nn.Module[B], state map[string]*tensor.RawTensor, logger *log.Logger) (*Report, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	kept, report := Filter(ModelShapes(m), state)
	for _, key := range report.Unexpected {
		logger.Printf("dropping %s: not in model", key)
	}
	for _, mm := range report.Mismatched {
		logger.Printf("dropping %s: checkpoint shape %v, model shape %v", mm.Key, mm.Checkpoint, mm.Model)
	}

	if err := Apply(m, kept); err != nil {
		return nil, err
	}
	logger.Printf("loaded checkpoint: %s", report)
	return report, nil
}

// LoadFile loads the checkpoint at path into m. The nested "model"
// mapping is used when present.
func LoadFile[B tensor.Backend](m nn.Module[B], path string, logger *log.Logger) (*Report, error) {
	ckpt, err := OpenCheckpoint(path)
	if err != nil {
		return nil, err
	}
	return LoadState(m, ckpt.ModelState(), logger)
}

// Load fetches the checkpoint at url (through the cache) and loads it
// into m.
func Load[B tensor.Backend](ctx context.Context, m nn.Module[B], url string, opts Options) (*Report, error) {
	opts = opts.withDefaults()

	path, err := Fetch(ctx, url, opts)
	if err != nil {
		return nil, err
	}
	return LoadFile(m, path, opts.Logger)
}

// Save writes the state dict of m to path in SafeTensors format, nested
// under "model." like a training checkpoint.
func Save[B tensor.Backend](m nn.Module[B], path string, metadata map[string]string) error {
	state := nn.StateDict(m)
	nested := make(map[string]*tensor.RawTensor, len(state))
	for key, raw := range state {
		nested[ModelKey+"."+key] = raw
	}
	return SaveSafeTensors(path, nested, metadata)
}

// Keys returns the sorted keys of a state dict or metadata map.
func Keys[V any](m map[string]V) []string {
	return sortedKeys(m)
}
