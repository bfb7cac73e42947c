// Package lockfile tracks which source strings have already been
// translated. For every output target (a source ID in one language) it
// keeps an MD5 digest of each translated key and value, so incremental
// runs only send entries that are new or have changed.
//
// The lock is stored as YAML in <output_dir>/mmlocalizer.lock.
package lockfile

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Y-RyuZU/MinecraftModsLocalizer-sub001/job"
	"github.com/Y-RyuZU/MinecraftModsLocalizer-sub001/storage"
)

// FileName is the lock file name inside the output directory.
const FileName = "mmlocalizer.lock"

// Version is the current on-disk format.
const Version = 2

// Target is the recorded state of one output file.
type Target struct {
	UpdatedAt time.Time         `yaml:"updated_at"`
	Digests   map[string]string `yaml:"digests"`
}

// Lock is the loaded lock file. It is safe for concurrent use.
type Lock struct {
	Version int                `yaml:"version"`
	Targets map[string]*Target `yaml:"targets"`

	mu   sync.Mutex
	fs   storage.FS
	path string
}

// TargetInfo summarises one target.
type TargetInfo struct {
	Name      string
	Keys      int
	UpdatedAt time.Time
}

// TargetKey names the target for sourceID translated into lang, e.g.
// "create/ja_jp".
func TargetKey(sourceID, lang string) string {
	return filepath.ToSlash(sourceID) + "/" + lang
}

// Digest returns the MD5 hex digest of an entry. The key is part of the
// digest so a renamed key counts as changed.
func Digest(key, value string) string {
	sum := md5.Sum([]byte(key + "\x00" + value))
	return hex.EncodeToString(sum[:])
}

// Open reads the lock file in dir through fsys. A missing file yields an
// empty lock that is created on Save.
func Open(fsys storage.FS, dir string) (*Lock, error) {
	l := &Lock{
		Version: Version,
		Targets: map[string]*Target{},
		fs:      fsys,
		path:    filepath.Join(dir, FileName),
	}
	data, err := fsys.ReadTextFile(l.path)
	if storage.IsNotExist(err) {
		return l, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal([]byte(data), l); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", l.path, err)
	}
	if l.Version > Version {
		return nil, fmt.Errorf("%s: unsupported lock version %d", l.path, l.Version)
	}
	l.Version = Version
	if l.Targets == nil {
		l.Targets = map[string]*Target{}
	}
	for name, t := range l.Targets {
		if t == nil {
			delete(l.Targets, name)
		} else if t.Digests == nil {
			t.Digests = map[string]string{}
		}
	}
	return l, nil
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	return l.path
}

// Save writes the lock back to disk.
func (l *Lock) Save() error {
	if l.fs == nil || l.path == "" {
		return errors.New("lock file was not opened")
	}
	l.mu.Lock()
	data, err := yaml.Marshal(l)
	l.mu.Unlock()
	if err != nil {
		return fmt.Errorf("encoding lock file: %w", err)
	}
	if err := l.fs.CreateDirectory(filepath.Dir(l.path)); err != nil {
		return err
	}
	return l.fs.WriteTextFile(l.path, string(data))
}

// Changed returns the entries of target that are new or differ from
// what was last recorded. Source order is kept.
func (l *Lock) Changed(target string, entries *job.Entries) *job.Entries {
	l.mu.Lock()
	defer l.mu.Unlock()

	var digests map[string]string
	if t := l.Targets[target]; t != nil {
		digests = t.Digests
	}
	out := job.NewEntries()
	entries.Range(func(k, v string) bool {
		if digests[k] != Digest(k, v) {
			out.Set(k, v)
		}
		return true
	})
	return out
}

// Record stores digests for the source entries that came back in
// translated. Entries the backend did not return stay pending.
func (l *Lock) Record(target string, source, translated *job.Entries) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t := l.target(target)
	source.Range(func(k, v string) bool {
		if _, ok := translated.Get(k); ok {
			t.Digests[k] = Digest(k, v)
		}
		return true
	})
	t.UpdatedAt = time.Now().UTC()
}

// Prune forgets keys of target that are no longer in keys.
func (l *Lock) Prune(target string, keys []string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t := l.Targets[target]
	if t == nil {
		return
	}
	keep := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		keep[k] = struct{}{}
	}
	for k := range t.Digests {
		if _, ok := keep[k]; !ok {
			delete(t.Digests, k)
		}
	}
}

// Forget drops targets whose name equals one of names or starts with
// name + "/". It returns the number removed. No names clears the lock.
func (l *Lock) Forget(names ...string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(names) == 0 {
		n := len(l.Targets)
		l.Targets = map[string]*Target{}
		return n
	}
	removed := 0
	for target := range l.Targets {
		for _, name := range names {
			if target == name || strings.HasPrefix(target, name+"/") {
				delete(l.Targets, target)
				removed++
				break
			}
		}
	}
	return removed
}

// List returns the targets sorted by name.
func (l *Lock) List() []TargetInfo {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]TargetInfo, 0, len(l.Targets))
	for name, t := range l.Targets {
		out = append(out, TargetInfo{Name: name, Keys: len(t.Digests), UpdatedAt: t.UpdatedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Summary describes the lock in one line.
func (l *Lock) Summary() string {
	list := l.List()
	if len(list) == 0 {
		return "empty"
	}
	keys := 0
	parts := make([]string, 0, len(list))
	for _, t := range list {
		keys += t.Keys
		parts = append(parts, fmt.Sprintf("%s: %d keys", t.Name, t.Keys))
	}
	return fmt.Sprintf("%d targets, %d keys (%s)", len(list), keys, strings.Join(parts, ", "))
}

func (l *Lock) target(name string) *Target {
	t := l.Targets[name]
	if t == nil {
		t = &Target{Digests: map[string]string{}}
		l.Targets[name] = t
	}
	return t
}
