package output

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/Y-RyuZU/MinecraftModsLocalizer-sub001/job"
	"github.com/Y-RyuZU/MinecraftModsLocalizer-sub001/storage"
)

// MetadataFile is written next to original_files in each backup.
const MetadataFile = "metadata.json"

// BackupMetadata describes one backed up output file.
type BackupMetadata struct {
	ID             string           `json:"id"`
	Timestamp      time.Time        `json:"timestamp"`
	Type           job.Domain       `json:"type"`
	SourceName     string           `json:"sourceName"`
	TargetLanguage string           `json:"targetLanguage"`
	SessionID      string           `json:"sessionId"`
	Statistics     BackupStatistics `json:"statistics"`
	OriginalPaths  []string         `json:"originalPaths"`
}

// BackupStatistics summarises the write that replaced the original.
type BackupStatistics struct {
	TotalKeys              int `json:"totalKeys"`
	SuccessfulTranslations int `json:"successfulTranslations"`
	FileSize               int `json:"fileSize"`
}

// Backup copies output files a session is about to overwrite into
// <root>/<sessionID>/<sourceID>/<lang>/original_files.
type Backup struct {
	fs        storage.FS
	dir       string
	sessionID string
	now       func() time.Time

	mu    sync.Mutex
	saved map[string]string
}

// NewBackup returns a backup for one session under root.
func NewBackup(fs storage.FS, root, sessionID string) (*Backup, error) {
	if sessionID == "" || filepath.Base(sessionID) != sessionID || sessionID == "." || sessionID == ".." {
		return nil, fmt.Errorf("invalid backup session id %q", sessionID)
	}
	return &Backup{
		fs:        fs,
		dir:       filepath.Join(root, sessionID),
		sessionID: sessionID,
		now:       time.Now,
		saved:     map[string]string{},
	}, nil
}

// Dir returns the session's backup directory.
func (b *Backup) Dir() string {
	return b.dir
}

// Save stores original, the current text of path, before j's output
// replaces it. Only the first version of a path is kept per session.
// It returns the backup directory of the file.
func (b *Backup) Save(j *job.Job, path, original string, replacement *job.Entries) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if dir, ok := b.saved[path]; ok {
		return dir, nil
	}

	name, err := cleanSourceID(j.SourceID)
	if err != nil {
		return "", err
	}
	dir := filepath.Join(b.dir, name, j.TargetLanguage)
	files := filepath.Join(dir, "original_files")
	if err := b.fs.CreateDirectory(files); err != nil {
		return "", err
	}
	copyPath := filepath.Join(files, filepath.Base(path))
	if err := b.fs.WriteTextFile(copyPath, original); err != nil {
		return "", err
	}

	meta := BackupMetadata{
		ID:             j.ID,
		Timestamp:      b.now().UTC(),
		Type:           j.Domain,
		SourceName:     j.SourceID,
		TargetLanguage: j.TargetLanguage,
		SessionID:      b.sessionID,
		Statistics: BackupStatistics{
			TotalKeys:              j.TotalEntries(),
			SuccessfulTranslations: replacement.Len() - len(j.PlaceholderKeys()),
			FileSize:               len(original),
		},
		OriginalPaths: []string{path},
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding backup metadata: %w", err)
	}
	if err := b.fs.WriteTextFile(filepath.Join(dir, MetadataFile), string(data)+"\n"); err != nil {
		return "", err
	}

	b.saved[path] = dir
	return dir, nil
}
