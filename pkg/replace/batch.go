package replace

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/slidesmith/slidesmith/pkg/deck"
	"github.com/slidesmith/slidesmith/pkg/errors"
)

// Runner applies a replacement rule set to every deck in a directory. Source
// decks are copied to the output directory first and rewritten there, so the
// input directory is never touched.
type Runner struct {
	Logger *log.Logger
}

// NewRunner creates a runner. If logger is nil, the default logger is used.
func NewRunner(logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{Logger: logger}
}

// Result summarizes one batch run.
type Result struct {
	Processed int
	Updated   int
	Failed    int
}

// Run copies every .pptx file from inputDir into outputDir and applies the
// rules to each copy. Per-file failures are logged and counted, never fatal:
// one corrupt deck must not sink the batch.
func (r *Runner) Run(inputDir, outputDir string, rules map[string]string) (*Result, error) {
	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "cannot read input directory %s", inputDir)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeSaveFailed, err, "cannot create output directory %s", outputDir)
	}

	res := &Result{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".pptx") {
			continue
		}
		res.Processed++

		dst := filepath.Join(outputDir, entry.Name())
		updated, err := r.processFile(filepath.Join(inputDir, entry.Name()), dst, rules)
		if err != nil {
			res.Failed++
			r.Logger.Error("deck failed", "file", entry.Name(), "err", err)
			continue
		}
		if updated {
			res.Updated++
			r.Logger.Info("deck updated", "file", entry.Name())
		} else {
			r.Logger.Info("no changes needed", "file", entry.Name())
		}
	}

	r.Logger.Info("batch complete",
		"processed", res.Processed, "updated", res.Updated, "failed", res.Failed)
	return res, nil
}

// processFile copies one deck and rewrites its text. The copy is written
// even when no rule matches, mirroring a plain copy for unaffected decks.
func (r *Runner) processFile(src, dst string, rules map[string]string) (bool, error) {
	data, err := os.ReadFile(src)
	if err != nil {
		return false, errors.Wrap(errors.ErrCodeInvalidInput, err, "cannot read %s", src)
	}

	prs, err := deck.Open(data)
	if err != nil {
		return false, err
	}

	updated := prs.ReplaceText(rules)
	out := data
	if updated {
		if out, err = prs.Save(); err != nil {
			return false, err
		}
	}

	if err := os.WriteFile(dst, out, 0o644); err != nil {
		return false, errors.Wrap(errors.ErrCodeSaveFailed, err, "cannot write %s", dst)
	}
	return updated, nil
}
