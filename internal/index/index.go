// Package index implements the persistent file-metadata cache backing the
// walker's index-assisted mode and the index/stats commands.
package index

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/karrick/godirwalk"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/tidyops/organize/internal/logger"
)

// DefaultMaxAge is the pruning cutoff used when a caller does not supply
// one. Entries are only ever pruned by an explicit CleanIndex call.
const DefaultMaxAge = 30 * 24 * time.Hour

// FileInfo is the cached metadata row for one path.
type FileInfo struct {
	Path      string
	IsDir     bool
	Size      int64
	MTime     time.Time
	CTime     time.Time
	IndexedAt time.Time
}

// FileInfoForPath builds a FileInfo by statting a path, stamping it with
// the current time.
func FileInfoForPath(path string) (FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileInfo{}, err
	}
	return FileInfo{
		Path:      path,
		IsDir:     info.IsDir(),
		Size:      info.Size(),
		MTime:     info.ModTime(),
		CTime:     info.ModTime(),
		IndexedAt: time.Now(),
	}, nil
}

// Statistics summarizes the contents of the index.
type Statistics struct {
	FileCount      int64
	DirectoryCount int64
	TotalSize      int64
	TagCount       int64
	LastUpdate     time.Time
	DatabaseSize   int64
}

// FileIndex is a SQLite-backed store of file metadata and per-path tags.
// Every operation is a self-contained transaction, so concurrent callers
// interleave at operation granularity without external locking.
type FileIndex struct {
	db     *sql.DB
	dbPath string
	logger *zap.Logger
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS files (
	path       TEXT PRIMARY KEY,
	is_dir     INTEGER NOT NULL,
	size       INTEGER NOT NULL,
	mtime      REAL NOT NULL,
	ctime      REAL NOT NULL,
	indexed_at REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS tags (
	path  TEXT NOT NULL,
	key   TEXT NOT NULL,
	value TEXT NOT NULL,
	PRIMARY KEY (path, key),
	FOREIGN KEY (path) REFERENCES files(path) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_files_is_dir ON files(is_dir);
CREATE INDEX IF NOT EXISTS idx_files_mtime ON files(mtime);
CREATE INDEX IF NOT EXISTS idx_files_indexed_at ON files(indexed_at);
CREATE INDEX IF NOT EXISTS idx_tags_key ON tags(key);
CREATE INDEX IF NOT EXISTS idx_tags_key_value ON tags(key, value);
`

// DefaultPath returns the per-user location of the index store.
func DefaultPath() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("locate cache directory: %w", err)
	}
	return filepath.Join(cacheDir, "organize", "file_index.db"), nil
}

// Open opens (creating if necessary) the index store at dbPath. An empty
// dbPath selects the default per-user location.
func Open(dbPath string, log *zap.Logger) (*FileIndex, error) {
	if dbPath == "" {
		var err error
		dbPath, err = DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create index directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	// busy_timeout first so the remaining pragmas wait on locks.
	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &FileIndex{db: db, dbPath: dbPath, logger: logger.OrNop(log)}, nil
}

// Close closes the underlying store.
func (ix *FileIndex) Close() error {
	if ix.db != nil {
		return ix.db.Close()
	}
	return nil
}

// Path returns the on-disk location of the store.
func (ix *FileIndex) Path() string { return ix.dbPath }

func toEpoch(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func fromEpoch(sec float64) time.Time {
	return time.Unix(0, int64(sec*float64(time.Second)))
}

// AddFile upserts a metadata row keyed by path.
func (ix *FileIndex) AddFile(info FileInfo) error {
	_, err := ix.db.Exec(
		`INSERT OR REPLACE INTO files (path, is_dir, size, mtime, ctime, indexed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		info.Path, info.IsDir, info.Size,
		toEpoch(info.MTime), toEpoch(info.CTime), toEpoch(info.IndexedAt),
	)
	if err != nil {
		return fmt.Errorf("add file %q: %w", info.Path, err)
	}
	return nil
}

// AddTag upserts a tag keyed by (path, key); the last write wins.
func (ix *FileIndex) AddTag(path, key, value string) error {
	_, err := ix.db.Exec(
		`INSERT OR REPLACE INTO tags (path, key, value) VALUES (?, ?, ?)`,
		path, key, value,
	)
	if err != nil {
		return fmt.Errorf("add tag %s=%s for %q: %w", key, value, path, err)
	}
	return nil
}

// GetFile looks up a path. A missing row returns (nil, nil).
func (ix *FileIndex) GetFile(path string) (*FileInfo, error) {
	row := ix.db.QueryRow(
		`SELECT path, is_dir, size, mtime, ctime, indexed_at FROM files WHERE path = ?`,
		path,
	)
	info, err := scanFileInfo(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get file %q: %w", path, err)
	}
	return &info, nil
}

// GetTag looks up one tag value. A missing tag returns ("", false, nil).
func (ix *FileIndex) GetTag(path, key string) (string, bool, error) {
	var value string
	err := ix.db.QueryRow(
		`SELECT value FROM tags WHERE path = ? AND key = ?`,
		path, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get tag %s for %q: %w", key, path, err)
	}
	return value, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFileInfo(row rowScanner) (FileInfo, error) {
	var info FileInfo
	var mtime, ctime, indexedAt float64
	if err := row.Scan(&info.Path, &info.IsDir, &info.Size, &mtime, &ctime, &indexedAt); err != nil {
		return FileInfo{}, err
	}
	info.MTime = fromEpoch(mtime)
	info.CTime = fromEpoch(ctime)
	info.IndexedAt = fromEpoch(indexedAt)
	return info, nil
}

func (ix *FileIndex) queryFiles(query string, args ...any) ([]FileInfo, error) {
	rows, err := ix.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var infos []FileInfo
	for rows.Next() {
		info, err := scanFileInfo(rows)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// FilesByExtension returns non-directory rows whose path ends in the
// given extension. A leading dot is accepted and ignored.
func (ix *FileIndex) FilesByExtension(ext string) ([]FileInfo, error) {
	ext = strings.TrimPrefix(ext, ".")
	infos, err := ix.queryFiles(
		`SELECT path, is_dir, size, mtime, ctime, indexed_at FROM files
		 WHERE is_dir = 0 AND path LIKE ?`,
		"%."+ext,
	)
	if err != nil {
		return nil, fmt.Errorf("files by extension %q: %w", ext, err)
	}
	return infos, nil
}

// FilesByTag returns the files carrying a tag key. With hasValue set the
// tag value must also match; otherwise any value for the key matches.
func (ix *FileIndex) FilesByTag(key, value string, hasValue bool) ([]FileInfo, error) {
	var (
		infos []FileInfo
		err   error
	)
	if hasValue {
		infos, err = ix.queryFiles(
			`SELECT f.path, f.is_dir, f.size, f.mtime, f.ctime, f.indexed_at
			 FROM files f JOIN tags t ON f.path = t.path
			 WHERE t.key = ? AND t.value = ?`,
			key, value,
		)
	} else {
		infos, err = ix.queryFiles(
			`SELECT f.path, f.is_dir, f.size, f.mtime, f.ctime, f.indexed_at
			 FROM files f JOIN tags t ON f.path = t.path
			 WHERE t.key = ?`,
			key,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("files by tag %q: %w", key, err)
	}
	return infos, nil
}

// PathsByKind returns all indexed file or directory paths. This is the
// query behind the walker's index-assisted traversal.
func (ix *FileIndex) PathsByKind(isDir bool) ([]string, error) {
	rows, err := ix.db.Query(`SELECT path FROM files WHERE is_dir = ?`, isDir)
	if err != nil {
		return nil, fmt.Errorf("paths by kind: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, rows.Err()
}

// RemoveFile deletes the row for a path; its tags cascade away with it.
func (ix *FileIndex) RemoveFile(path string) error {
	if _, err := ix.db.Exec(`DELETE FROM files WHERE path = ?`, path); err != nil {
		return fmt.Errorf("remove file %q: %w", path, err)
	}
	return nil
}

// CleanIndex deletes rows whose indexed_at is older than maxAge and
// returns the count removed. Zero maxAge selects DefaultMaxAge.
func (ix *FileIndex) CleanIndex(maxAge time.Duration) (int64, error) {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	cutoff := toEpoch(time.Now().Add(-maxAge))
	result, err := ix.db.Exec(`DELETE FROM files WHERE indexed_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("clean index: %w", err)
	}
	return result.RowsAffected()
}

// IndexDirectory indexes the directory itself and each child, descending
// into subdirectories when recursive is set. Unreadable or vanished
// subtrees are logged and skipped; the walk continues with siblings.
// Returns the number of entries indexed.
func (ix *FileIndex) IndexDirectory(dir string, recursive bool) (int, error) {
	if recursive {
		return ix.indexRecursive(dir)
	}

	count := 0
	if err := ix.indexOne(dir); err != nil {
		ix.logger.Warn("error indexing", zap.String("path", dir), zap.Error(err))
		return 0, nil
	}
	count++

	entries, err := os.ReadDir(dir)
	if err != nil {
		ix.logger.Warn("error indexing", zap.String("path", dir), zap.Error(err))
		return count, nil
	}
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if err := ix.indexOne(path); err != nil {
			ix.logger.Warn("error indexing", zap.String("path", path), zap.Error(err))
			continue
		}
		count++
	}
	return count, nil
}

func (ix *FileIndex) indexRecursive(dir string) (int, error) {
	count := 0
	err := godirwalk.Walk(dir, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsSymlink() {
				return nil
			}
			if err := ix.indexOne(path); err != nil {
				ix.logger.Warn("error indexing", zap.String("path", path), zap.Error(err))
				return nil
			}
			count++
			return nil
		},
		ErrorCallback: func(path string, err error) godirwalk.ErrorAction {
			ix.logger.Warn("error indexing", zap.String("path", path), zap.Error(err))
			return godirwalk.SkipNode
		},
		Unsorted: false,
	})
	if err != nil {
		ix.logger.Warn("error indexing", zap.String("path", dir), zap.Error(err))
	}
	return count, nil
}

func (ix *FileIndex) indexOne(path string) error {
	info, err := FileInfoForPath(path)
	if err != nil {
		return err
	}
	return ix.AddFile(info)
}

// GetStatistics summarizes the index contents and on-disk size.
func (ix *FileIndex) GetStatistics() (Statistics, error) {
	var stats Statistics

	queries := []struct {
		query string
		dest  *int64
	}{
		{`SELECT COUNT(*) FROM files WHERE is_dir = 0`, &stats.FileCount},
		{`SELECT COUNT(*) FROM files WHERE is_dir = 1`, &stats.DirectoryCount},
		{`SELECT COALESCE(SUM(size), 0) FROM files WHERE is_dir = 0`, &stats.TotalSize},
		{`SELECT COUNT(*) FROM tags`, &stats.TagCount},
	}
	for _, q := range queries {
		if err := ix.db.QueryRow(q.query).Scan(q.dest); err != nil {
			return Statistics{}, fmt.Errorf("statistics: %w", err)
		}
	}

	var lastUpdate float64
	if err := ix.db.QueryRow(`SELECT COALESCE(MAX(indexed_at), 0) FROM files`).Scan(&lastUpdate); err != nil {
		return Statistics{}, fmt.Errorf("statistics: %w", err)
	}
	if lastUpdate > 0 {
		stats.LastUpdate = fromEpoch(lastUpdate)
	}

	if ix.dbPath != ":memory:" {
		if fi, err := os.Stat(ix.dbPath); err == nil {
			stats.DatabaseSize = fi.Size()
		}
	}
	return stats, nil
}
