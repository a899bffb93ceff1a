package collab

import "fmt"

// AllowedEnv builds the minimal environment passed to a spawned tool
// server or builder subprocess: PATH plus whatever explicit extra keys
// the caller names (database paths, a single named model-API key). The
// parent's own environment and any secrets are never spread to children.
func AllowedEnv(path string, extra map[string]string) []string {
	env := []string{fmt.Sprintf("PATH=%s", path)}
	for k, v := range extra {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	return env
}
