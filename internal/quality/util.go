package quality

import (
	"os"
)

// readFileIfExists returns the empty string (not an error) when path
// does not exist, so scanners can treat a missing file as "nothing to
// flag" instead of a scan failure.
func readFileIfExists(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return string(data), nil
}
