package mysql

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Backup archives are date-stamped tarballs, e.g. 20240131-0405.tar.bz2.
// Lexicographic order and chronological order coincide for the zero-padded
// stamp, so the newest archive is simply the greatest matching name.
var archivePattern = regexp.MustCompile(`^\d{8}-\d{4}.*\.tar\.bz2$`)

// LatestArchive returns the newest date-stamped backup archive in dir, or
// ok=false when no file matches.
func LatestArchive(dir string) (path string, ok bool, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false, fmt.Errorf("read backup dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	latest, ok := latestMatching(names)
	if !ok {
		return "", false, nil
	}
	return filepath.Join(dir, latest), true, nil
}

// latestMatching picks the newest date-stamped archive out of a name list.
// Shared by the local directory scan and the remote listing so both select
// the same archive for the same names.
func latestMatching(names []string) (string, bool) {
	latest := ""
	for _, name := range names {
		name = strings.TrimSpace(name)
		if archivePattern.MatchString(name) && name > latest {
			latest = name
		}
	}
	return latest, latest != ""
}

// findDump locates the SQL dump inside an extracted archive. The first .sql
// file in path order wins, which keeps repeated restores deterministic.
func findDump(dir string) (string, error) {
	var dumps []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".sql") {
			dumps = append(dumps, path)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("scan extracted archive: %w", err)
	}
	if len(dumps) == 0 {
		return "", fmt.Errorf("archive contains no .sql dump")
	}
	sort.Strings(dumps)
	return dumps[0], nil
}
