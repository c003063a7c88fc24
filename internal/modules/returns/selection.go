package returns

import (
	"fmt"
	"strings"

	"github.com/aristath/frontier/internal/domain"
)

// ParseSelection parses a comma separated list of asset columns such as
// "SPY, GLD". Names are trimmed; an empty or blank list selects every asset
// and yields nil. Empty names and duplicates are rejected.
func ParseSelection(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	names := strings.Split(s, ",")
	for i, name := range names {
		names[i] = strings.TrimSpace(name)
	}
	if err := checkSelection(names); err != nil {
		return nil, err
	}
	return names, nil
}

func checkSelection(names []string) error {
	seen := make(map[string]bool, len(names))
	for i, name := range names {
		if name == "" {
			return fmt.Errorf("%w: empty asset name at position %d", domain.ErrInvalidParameter, i+1)
		}
		if seen[name] {
			return fmt.Errorf("%w: asset %q selected twice", domain.ErrInvalidParameter, name)
		}
		seen[name] = true
	}
	return nil
}
