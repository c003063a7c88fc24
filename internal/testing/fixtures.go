package testing

import (
	"os"
	"path/filepath"
	"testing"
)

// ReturnsCSV is a small three-asset daily returns file.
const ReturnsCSV = `date,SPY,QQQ,GLD
2024-01-02,0.0012,0.0021,-0.0004
2024-01-03,-0.0051,-0.0083,0.0015
2024-01-04,0.0034,0.0047,0.0008
2024-01-05,0.0009,-0.0012,-0.0021
2024-01-08,0.0141,0.0198,0.0031
2024-01-09,-0.0015,0.0020,-0.0009
2024-01-10,0.0057,0.0075,0.0002
2024-01-11,0.0008,0.0019,0.0027
`

// PricesCSV is a price file with a missing value for the converter.
const PricesCSV = `date,SPY,GLD
2024-01-02,470.00,190.0
2024-01-03,467.50,
2024-01-04,471.20,191.5
2024-01-05,472.00,190.8
`

// WriteFile writes content into a file in a test temp directory and returns
// its path.
func WriteFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write fixture %s: %v", name, err)
	}
	return path
}
