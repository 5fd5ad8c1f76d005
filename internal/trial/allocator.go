package trial

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// AllocationError means the export root is unusable. This is fatal for the
// session: no trial can ever be committed to a root we cannot write.
type AllocationError struct {
	Root string
	Err  error
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("allocate trial id in %s: %v", e.Root, e.Err)
}

func (e *AllocationError) Unwrap() error {
	return e.Err
}

// Allocator derives trial ids from the export root directory layout. One
// allocator (one recorder) per export root: the directory scan is not safe
// against concurrent writers and is not meant to be.
type Allocator struct {
	root string

	mu   sync.Mutex
	last int // highest id committed by this session
}

func NewAllocator(root string) *Allocator {
	return &Allocator{root: root}
}

func (a *Allocator) Root() string {
	return a.root
}

// NextID returns the next unused trial id: one past the highest numeric
// subdirectory of the root, and never at or below an id this session has
// already committed, so deleting trial directories mid-session cannot
// cause a reuse. The id is not reserved until MarkCommitted is called.
func (a *Allocator) NextID() (int, error) {
	scanned, err := ScanMaxID(a.root)
	if err != nil {
		return 0, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.last > scanned {
		scanned = a.last
	}
	return scanned + 1, nil
}

// MarkCommitted records that id now exists on disk under its final name.
func (a *Allocator) MarkCommitted(id int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if id > a.last {
		a.last = id
	}
}

// ScanMaxID returns the highest integer-named subdirectory of root, or 0
// if there is none. A missing root is created. Non-numeric entries are
// skipped so archived or auxiliary folders can live next to the trials.
func ScanMaxID(root string) (int, error) {
	info, err := os.Stat(root)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := os.MkdirAll(root, 0o755); err != nil {
			return 0, &AllocationError{Root: root, Err: err}
		}
		return 0, nil
	case err != nil:
		return 0, &AllocationError{Root: root, Err: err}
	case !info.IsDir():
		return 0, &AllocationError{Root: root, Err: errors.New("not a directory")}
	}

	if err := probeWritable(root); err != nil {
		return 0, &AllocationError{Root: root, Err: err}
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return 0, &AllocationError{Root: root, Err: err}
	}

	max := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id, err := strconv.Atoi(entry.Name())
		if err != nil || id <= 0 {
			continue
		}
		if id > max {
			max = id
		}
	}
	return max, nil
}

func probeWritable(root string) error {
	f, err := os.CreateTemp(root, ".allocprobe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

// tempTrialDir returns the staging directory name for a trial id. Dot
// prefixed and non-numeric, so a crashed commit never pollutes the id
// space seen by ScanMaxID.
func tempTrialDir(root string, id int) string {
	return filepath.Join(root, fmt.Sprintf(".trial-%d.tmp", id))
}

// finalTrialDir returns the published directory name for a trial id.
func finalTrialDir(root string, id int) string {
	return filepath.Join(root, strconv.Itoa(id))
}
