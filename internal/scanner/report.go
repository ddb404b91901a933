package scanner

import "time"

// FileResult is the outcome of loading one corpus file. Err is set when the
// file was skipped; Warnings describe fields that were overridden or
// defaulted while the file still loaded.
type FileResult struct {
	Path     string   `json:"path"`
	Slug     string   `json:"slug"`
	Category string   `json:"category"`
	Error    string   `json:"error,omitempty"`
	Warnings []string `json:"warnings,omitempty"`

	Err error `json:"-"`
}

// OK reports whether the file produced a note.
func (r FileResult) OK() bool {
	return r.Err == nil
}

func (r *FileResult) fail(err error) {
	r.Err = err
	r.Error = err.Error()
}

func (r *FileResult) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// Report summarises one full scan.
type Report struct {
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
	Notes     int           `json:"notes"`
	Files     []FileResult  `json:"files"`
	// MissingCategories lists configured categories without a directory.
	MissingCategories []string `json:"missingCategories,omitempty"`
}

// Failed returns the files that were skipped.
func (r *Report) Failed() []FileResult {
	var out []FileResult
	for _, f := range r.Files {
		if !f.OK() {
			out = append(out, f)
		}
	}
	return out
}

// Warned returns the files that loaded with warnings.
func (r *Report) Warned() []FileResult {
	var out []FileResult
	for _, f := range r.Files {
		if f.OK() && len(f.Warnings) > 0 {
			out = append(out, f)
		}
	}
	return out
}
