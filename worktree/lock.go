package worktree

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/mrbonezy/wtm/logging"
)

const (
	// DefaultStaleAfter is how old a lease marker must be before another
	// process may reclaim it.
	DefaultStaleAfter = 5 * time.Minute

	lockFileName    = "wtm.lock"
	reclaimFileName = "wtm.lock.reclaim"
)

// LockManager hands out the per-repository lease that serializes every
// mutating operation across processes. The lease is a marker file created
// with O_EXCL in the git common dir; acquisition never waits.
type LockManager struct {
	staleAfter time.Duration
	now        func() time.Time
	log        *logging.ScopedLogger
}

func NewLockManager(staleAfter time.Duration, log *logging.ScopedLogger) *LockManager {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	if log == nil {
		log = logging.NopLogger()
	}
	return &LockManager{staleAfter: staleAfter, now: time.Now, log: log}
}

// LockInfo is the content of a lease marker.
type LockInfo struct {
	OwnerID   string    `json:"owner_id"`
	PID       int       `json:"pid"`
	Host      string    `json:"host"`
	Operation string    `json:"operation,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	Path  string        `json:"-"`
	Age   time.Duration `json:"-"`
	Stale bool          `json:"-"`
}

// Lock is a held lease. Release is safe to call more than once.
type Lock struct {
	path    string
	ownerID string
	log     *logging.ScopedLogger

	mu       sync.Mutex
	released bool
}

func (m *LockManager) Acquire(adminDir string) (*Lock, error) {
	return m.AcquireFor(adminDir, "")
}

// AcquireFor takes the lease and records operation in the marker so that
// `wtm lock status` can say what is holding it.
func (m *LockManager) AcquireFor(adminDir string, operation string) (*Lock, error) {
	if adminDir == "" {
		return nil, errors.New("admin dir required")
	}
	path := filepath.Join(adminDir, lockFileName)

	lock, err := m.create(path, operation)
	if err == nil {
		m.log.Debug("lease acquired", "path", path, "operation", operation)
		return lock, nil
	}
	if !errors.Is(err, os.ErrExist) {
		return nil, err
	}

	current, err := m.inspect(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// Released between our create and our read; one more attempt.
			return m.createOrBusy(path, operation)
		}
		return nil, err
	}
	if !current.Stale {
		m.log.Debug("lease held", "path", path, "owner", current.OwnerID, "age", current.Age.String())
		return nil, fmt.Errorf("%w (held by pid %d on %s for %s)", ErrBusy, current.PID, current.Host, current.Age.Round(time.Second))
	}
	return m.reclaim(adminDir, path, operation, current)
}

// reclaim replaces a stale marker. The flock serializes reclaimers so that
// only one of them deletes the stale marker and creates its own.
func (m *LockManager) reclaim(adminDir, path, operation string, stale LockInfo) (*Lock, error) {
	fl := flock.New(filepath.Join(adminDir, reclaimFileName))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("reclaim lease: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w (stale lease is being reclaimed)", ErrBusy)
	}
	defer func() { _ = fl.Unlock() }()

	current, err := m.inspect(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return m.createOrBusy(path, operation)
		}
		return nil, err
	}
	if !current.Stale || current.OwnerID != stale.OwnerID || !current.CreatedAt.Equal(stale.CreatedAt) {
		return nil, fmt.Errorf("%w (held by pid %d on %s)", ErrBusy, current.PID, current.Host)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	lock, err := m.createOrBusy(path, operation)
	if err != nil {
		return nil, err
	}
	m.log.Warn("reclaimed stale lease", "path", path, "previous_owner", stale.OwnerID, "previous_pid", stale.PID, "age", stale.Age.String())
	return lock, nil
}

func (m *LockManager) createOrBusy(path, operation string) (*Lock, error) {
	lock, err := m.create(path, operation)
	if errors.Is(err, os.ErrExist) {
		return nil, ErrBusy
	}
	return lock, err
}

func (m *LockManager) create(path, operation string) (*Lock, error) {
	host, _ := os.Hostname()
	info := LockInfo{
		OwnerID:   uuid.NewString(),
		PID:       os.Getpid(),
		Host:      host,
		Operation: operation,
		CreatedAt: m.now().UTC(),
	}
	payload, err := json.Marshal(info)
	if err != nil {
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	if _, werr := file.Write(payload); werr != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return nil, werr
	}
	if cerr := file.Close(); cerr != nil {
		_ = os.Remove(path)
		return nil, cerr
	}
	return &Lock{path: path, ownerID: info.OwnerID, log: m.log}, nil
}

// Inspect reports the current lease holder, if any.
func (m *LockManager) Inspect(adminDir string) (LockInfo, bool, error) {
	info, err := m.inspect(filepath.Join(adminDir, lockFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return LockInfo{}, false, nil
		}
		return LockInfo{}, false, err
	}
	return info, true, nil
}

func (m *LockManager) inspect(path string) (LockInfo, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return LockInfo{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return LockInfo{}, err
	}
	var info LockInfo
	if jerr := json.Unmarshal(data, &info); jerr != nil || info.CreatedAt.IsZero() {
		// Half-written or foreign marker: age it by its mtime.
		info = LockInfo{CreatedAt: stat.ModTime()}
	}
	info.Path = path
	info.Age = m.now().Sub(info.CreatedAt)
	info.Stale = info.Age >= m.staleAfter
	return info, nil
}

// ForceUnlock deletes the marker regardless of owner.
func (m *LockManager) ForceUnlock(adminDir string) error {
	path := filepath.Join(adminDir, lockFileName)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	m.log.Warn("lease force-cleared", "path", path)
	return nil
}

// Release deletes the marker only if it still carries this lock's owner id.
// A marker that is gone, unreadable or reclaimed by another process is left
// alone.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return nil
	}

	data, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			l.released = true
			return nil
		}
		return err
	}
	var current LockInfo
	if err := json.Unmarshal(data, &current); err != nil {
		// Possibly another process's marker caught mid-write.
		l.released = true
		l.log.Warn("lease marker unreadable; leaving it", "path", l.path, "error", err)
		return nil
	}
	if current.OwnerID != l.ownerID {
		l.released = true
		l.log.Warn("lease was reclaimed by another process", "path", l.path, "owner", current.OwnerID)
		return nil
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	l.released = true
	l.log.Debug("lease released", "path", l.path)
	return nil
}

func (l *Lock) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}
