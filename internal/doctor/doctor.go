// Package doctor explains what plugin discovery did with each root and
// directory. The load pipeline skips problems silently; this is where they
// are spelled out.
package doctor

import (
	"errors"
	"fmt"
	"os"

	"github.com/mattjoyce/plugscan/internal/plugin"
)

// Result holds the outcome of a diagnostic run.
type Result struct {
	Valid    bool         `json:"valid"`
	Loaded   int          `json:"loaded"`
	Roots    []RootReport `json:"roots"`
	Errors   []Issue      `json:"errors,omitempty"`
	Warnings []Issue      `json:"warnings,omitempty"`
}

// RootReport summarizes one root, in priority order.
type RootReport struct {
	Path       string `json:"path"`
	Priority   int    `json:"priority"` // 0 is highest
	Readable   bool   `json:"readable"`
	Candidates int    `json:"candidates"`
	Loaded     int    `json:"loaded"`
}

// Issue describes a single error or warning.
type Issue struct {
	Category string `json:"category"`
	Path     string `json:"path"`
	Message  string `json:"message"`
}

// Doctor inspects plugin roots using the same descriptor rules as the
// pipeline.
type Doctor struct {
	roots   []string
	scanner *plugin.Scanner
	loader  *plugin.RONLoader
	fsType  func(path string) (string, error)
}

// New creates a Doctor over roots, highest priority first.
func New(roots []string, loader *plugin.RONLoader) *Doctor {
	return &Doctor{roots: roots, scanner: plugin.NewScanner(nil), loader: loader, fsType: filesystemType}
}

// Check walks every root and returns a report. Unparsable descriptors are
// errors; everything else the pipeline would skip is a warning.
func (d *Doctor) Check() *Result {
	r := &Result{}
	names := make(map[string]string)

	for i, root := range d.roots {
		report := RootReport{Path: root, Priority: i}
		d.checkRoot(r, &report, names)
		r.Loaded += report.Loaded
		r.Roots = append(r.Roots, report)
	}

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) checkRoot(r *Result, report *RootReport, names map[string]string) {
	root := report.Path
	info, err := os.Stat(root)
	switch {
	case os.IsNotExist(err):
		d.addWarning(r, "root", root, "plugin root does not exist")
		return
	case err != nil:
		d.addWarning(r, "root", root, fmt.Sprintf("cannot stat plugin root: %v", err))
		return
	case !info.IsDir():
		d.addWarning(r, "root", root, "plugin root is not a directory")
		return
	}

	// Same walk and candidate rule as the pipeline, so first-seen names
	// agree with what the pipeline emits.
	err = d.scanner.Walk(root, func(source string, c plugin.Candidate, err error) bool {
		switch {
		case errors.Is(err, plugin.ErrNotDirectory):
			return true
		case errors.Is(err, plugin.ErrNoDescriptor):
			d.addWarning(r, "entry", source, err.Error())
			return true
		case err != nil:
			d.addWarning(r, "entry", source, fmt.Sprintf("cannot inspect entry: %v", err))
			return true
		}
		report.Candidates++
		d.checkCandidate(r, report, c, names)
		return true
	})
	if err != nil {
		d.addWarning(r, "root", root, fmt.Sprintf("cannot read plugin root: %v", err))
		return
	}
	report.Readable = true

	// Detection failures are not reported; the check is advisory.
	if fsType, err := d.fsType(root); err == nil && isNetworkFilesystem(fsType) {
		d.addWarning(r, "filesystem", root,
			fmt.Sprintf("plugin root is on network filesystem %q; every load rescans it", fsType))
	}
}

func (d *Doctor) checkCandidate(r *Result, report *RootReport, c plugin.Candidate, names map[string]string) {
	lp, err := d.loader.Parse(c.Source, c.Descriptor)
	if err != nil {
		d.addError(r, "descriptor", c.Descriptor, err.Error())
		return
	}
	report.Loaded++

	if lp.Config.Query.Regex != "" && lp.Pattern == nil {
		d.addWarning(r, "pattern", c.Descriptor,
			fmt.Sprintf("query.regex %q does not compile; plugin loads without a pattern", lp.Config.Query.Regex))
	}

	if first, ok := names[lp.Config.Name]; ok {
		d.addWarning(r, "shadow", c.Source,
			fmt.Sprintf("plugin %q also loaded from %s; both are emitted", lp.Config.Name, first))
	} else {
		names[lp.Config.Name] = c.Source
	}
}

func (d *Doctor) addError(r *Result, category, path, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Path: path, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, path, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Path: path, Message: msg})
}
