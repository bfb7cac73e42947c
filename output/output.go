// Package output writes the combined translation of a job to
// <dir>/<sourceID>/<lang>.<json|lang>, optionally backing up the file it
// replaces.
package output

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/Y-RyuZU/MinecraftModsLocalizer-sub001/job"
	"github.com/Y-RyuZU/MinecraftModsLocalizer-sub001/langfile"
	"github.com/Y-RyuZU/MinecraftModsLocalizer-sub001/logging"
	"github.com/Y-RyuZU/MinecraftModsLocalizer-sub001/storage"
)

// Writer persists job output through a storage.FS.
type Writer struct {
	fs     storage.FS
	dir    string
	format langfile.Format
	// merge overlays new values onto an existing output file.
	merge  bool
	backup *Backup
	logger arbor.ILogger
}

// New returns a writer rooted at dir. Format must be json or lang.
func New(fs storage.FS, dir string, format langfile.Format, merge bool, logger arbor.ILogger) (*Writer, error) {
	if format != langfile.FormatJSON && format != langfile.FormatLang {
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Writer{fs: fs, dir: dir, format: format, merge: merge, logger: logger}, nil
}

// SetBackup makes Write copy existing files into b before replacing
// them. A nil b disables backups.
func (w *Writer) SetBackup(b *Backup) {
	w.backup = b
}

// Path returns the output path for a source and language.
func (w *Writer) Path(sourceID, lang string) (string, error) {
	name, err := cleanSourceID(sourceID)
	if err != nil {
		return "", err
	}
	return filepath.Join(w.dir, name, lang+w.format.Ext()), nil
}

// cleanSourceID turns a source id into a relative path that stays
// inside its parent directory.
func cleanSourceID(sourceID string) (string, error) {
	name := filepath.Clean(filepath.FromSlash(sourceID))
	if sourceID == "" || name == "." || filepath.IsAbs(name) || name == ".." || strings.HasPrefix(name, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid source id %q", sourceID)
	}
	return name, nil
}

// Write stores content for j and returns the written path. It matches
// the runner's output hook.
func (w *Writer) Write(_ context.Context, j *job.Job, content *job.Entries) (string, error) {
	path, err := w.Path(j.SourceID, j.TargetLanguage)
	if err != nil {
		return "", err
	}
	if err := w.fs.CreateDirectory(filepath.Dir(path)); err != nil {
		return "", err
	}

	if w.merge || w.backup != nil {
		text, exists, err := w.read(path)
		if err != nil {
			return "", err
		}
		if exists && w.backup != nil {
			dir, err := w.backup.Save(j, path, text, content)
			if err != nil {
				return "", fmt.Errorf("backing up %s: %w", path, err)
			}
			w.logger.Debug().Str("path", path).Str("backup", dir).Msg("Backed up existing output")
		}
		if w.merge {
			existing := job.NewEntries()
			if exists {
				if existing, err = langfile.Parse([]byte(text), w.format); err != nil {
					return "", fmt.Errorf("parsing existing %s: %w", path, err)
				}
				w.logger.Debug().Str("path", path).Int("existing", existing.Len()).Msg("Merging with existing output")
			}
			content = langfile.Merge(existing, content)
		}
	}

	data, err := langfile.Marshal(content, w.format)
	if err != nil {
		return "", err
	}
	if err := w.fs.WriteTextFile(path, string(data)); err != nil {
		return "", err
	}

	w.logger.Info().Str("path", path).Int("keys", content.Len()).Msg("Wrote translation output")
	return path, nil
}

func (w *Writer) read(path string) (string, bool, error) {
	text, err := w.fs.ReadTextFile(path)
	if err != nil {
		if storage.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return text, true, nil
}
