package apache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ensureAllowed guarantees the document path appears in the SuExec
// allow-list, prepending a new line when missing. Membership is a substring
// match over the whole file, so a path that is a prefix of an already-listed
// path counts as present. That looseness matches the behavior existing
// installations depend on and is kept as-is.
func ensureAllowed(listPath, documentPath string) error {
	content := ""
	b, err := os.ReadFile(listPath) //nolint:gosec // path comes from provisioner options
	switch {
	case err == nil:
		content = string(b)
	case os.IsNotExist(err):
		// First site on this host; the list is created below.
	default:
		return fmt.Errorf("read allow-list: %w", err)
	}

	if strings.Contains(content, documentPath) {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(listPath), 0o755); err != nil {
		return fmt.Errorf("create allow-list dir: %w", err)
	}
	updated := documentPath + "\n" + content
	if err := os.WriteFile(listPath, []byte(updated), 0o644); err != nil { //nolint:gosec // read by the suexec helper
		return fmt.Errorf("write allow-list: %w", err)
	}
	return nil
}
