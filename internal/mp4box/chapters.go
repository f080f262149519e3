package mp4box

import (
	"fmt"
	"os"
)

// withChaptersFile materializes chapters to a temp file for the duration of
// fn. fn receives an empty path when there are no chapters. The file is
// removed however fn returns.
func withChaptersFile(chapters string, fn func(path string) error) error {
	if chapters == "" {
		return fn("")
	}
	file, err := os.CreateTemp("", "mp4forge-chapters-*.txt")
	if err != nil {
		return fmt.Errorf("create chapters file: %w", err)
	}
	path := file.Name()
	defer os.Remove(path)

	if _, err := file.WriteString(chapters); err != nil {
		file.Close()
		return fmt.Errorf("write chapters file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close chapters file: %w", err)
	}
	return fn(path)
}
