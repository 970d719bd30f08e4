package plugin

import (
	"errors"
	"io"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
)

// DescriptorName is the file that marks a directory as a plugin.
const DescriptorName = "plugin.ron"

// readBatch is how many directory entries are read per getdents round trip.
const readBatch = 32

// Candidate is a plugin directory that holds a descriptor, awaiting load.
type Candidate struct {
	Source     string // Plugin directory
	Descriptor string // Source joined with DescriptorName
}

// Scanner enumerates the immediate plugin directories of a root.
// A root that cannot be read yields nothing; entries that cannot be
// inspected are skipped.
type Scanner struct {
	logger *slog.Logger
}

// NewScanner creates a Scanner. A nil logger discards.
func NewScanner(logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = discardLogger()
	}
	return &Scanner{logger: logger}
}

// Scan returns every candidate under root in directory enumeration order.
func (s *Scanner) Scan(root string) []Candidate {
	var out []Candidate
	s.walk(root, func(c Candidate) bool {
		out = append(out, c)
		return true
	})
	return out
}

// ScanSeq returns a lazy, single-use sequence of the candidates under root.
// The directory is read by a producer goroutine that hands each candidate
// over an unbuffered channel, so reading never runs ahead of the consumer by
// more than one entry. Breaking out of the range stops the producer.
func (s *Scanner) ScanSeq(root string) iter.Seq[Candidate] {
	return func(yield func(Candidate) bool) {
		out := make(chan Candidate)
		done := make(chan struct{})
		defer close(done)

		go func() {
			defer close(out)
			s.walk(root, func(c Candidate) bool {
				select {
				case out <- c:
					return true
				case <-done:
					return false
				}
			})
		}()

		for c := range out {
			if !yield(c) {
				return
			}
		}
	}
}

// ErrNoDescriptor marks a directory without a regular plugin.ron.
var ErrNoDescriptor = errors.New("directory has no " + DescriptorName)

// ErrNotDirectory marks a root entry that is not a directory.
var ErrNotDirectory = errors.New("not a directory")

// Examine applies the candidate rule to a single root entry. Symlinks are
// followed for both the entry and its descriptor. A stat failure is returned
// as is.
func Examine(source string) (Candidate, error) {
	info, err := os.Stat(source)
	if err != nil {
		return Candidate{}, err
	}
	if !info.IsDir() {
		return Candidate{}, ErrNotDirectory
	}

	descriptor := filepath.Join(source, DescriptorName)
	info, err = os.Stat(descriptor)
	if err != nil || !info.Mode().IsRegular() {
		return Candidate{}, ErrNoDescriptor
	}
	return Candidate{Source: source, Descriptor: descriptor}, nil
}

// Walk reads root in batches, in directory enumeration order, and calls visit
// with the outcome of Examine for every entry until visit returns false or the
// directory is exhausted. Only a root that cannot be opened is an error; a
// read that fails part way ends the walk quietly.
func (s *Scanner) Walk(root string, visit func(source string, c Candidate, err error) bool) error {
	dir, err := os.Open(root)
	if err != nil {
		return err
	}
	defer dir.Close()

	for {
		entries, err := dir.ReadDir(readBatch)
		for _, entry := range entries {
			source := filepath.Join(root, entry.Name())
			c, cerr := Examine(source)
			if !visit(source, c, cerr) {
				return nil
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Debug("plugin root read stopped", "root", root, "error", err.Error())
			}
			return nil
		}
	}
}

// walk emits the candidates of root, logging what it skips.
func (s *Scanner) walk(root string, emit func(Candidate) bool) {
	err := s.Walk(root, func(source string, c Candidate, err error) bool {
		switch {
		case err == nil:
			return emit(c)
		case errors.Is(err, ErrNotDirectory):
		case errors.Is(err, ErrNoDescriptor):
			s.logger.Debug("skipping directory without descriptor", "path", source)
		default:
			s.logger.Debug("skipping unreadable entry", "path", source, "error", err.Error())
		}
		return true
	})
	if err != nil {
		s.logger.Debug("plugin root unavailable", "root", root, "error", err.Error())
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
