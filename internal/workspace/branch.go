package workspace

import (
	"strconv"
	"strings"
)

// NextBranchName picks the next isolation branch name for the given prefix.
// Existing names are scanned for a numeric suffix and the result is
// prefix+(max+1), or prefix+1 when no numbered branch exists. Names without
// the prefix or with a non-numeric suffix are ignored. The counter is derived
// fresh on every call so branches created or deleted outside a run cannot
// desynchronize it.
func NextBranchName(prefix string, names []string) string {
	maxSuffix := 0
	for _, name := range names {
		name = strings.TrimSpace(name)
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		suffix := name[len(prefix):]
		n, ok := parseSuffix(suffix)
		if !ok {
			continue
		}
		if n > maxSuffix {
			maxSuffix = n
		}
	}
	return prefix + strconv.Itoa(maxSuffix+1)
}

func parseSuffix(suffix string) (int, bool) {
	if suffix == "" {
		return 0, false
	}
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(suffix)
	if err != nil {
		return 0, false
	}
	return n, true
}
