package domain

import (
	"os"
	"slices"
	"strings"
)

// MergeEnv builds a process environment from layered sources. Later layers
// override earlier ones. PATH entries in the toolchain layer prepend to the
// base PATH instead of replacing it, so provisioned interpreters shadow the
// host ones. The result is sorted.
func MergeEnv(system, toolchain []string, overlays ...map[string]string) []string {
	envMap := make(map[string]string, len(system))
	for _, entry := range system {
		if k, v, ok := strings.Cut(entry, "="); ok {
			envMap[k] = v
		}
	}

	for _, entry := range toolchain {
		k, v, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		if k == "PATH" {
			if base, exists := envMap["PATH"]; exists && base != "" {
				envMap[k] = v + string(os.PathListSeparator) + base
				continue
			}
		}
		envMap[k] = v
	}

	for _, overlay := range overlays {
		for k, v := range overlay {
			envMap[k] = v
		}
	}

	out := make([]string, 0, len(envMap))
	for k, v := range envMap {
		out = append(out, k+"="+v)
	}
	slices.Sort(out)
	return out
}

// ParseEnvLines reads KEY=VALUE lines, the format steps write to the file
// named by GANTRY_ENV. Blank lines and # comments are ignored; values keep
// any further = characters.
func ParseEnvLines(data []byte) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if k, v, ok := strings.Cut(line, "="); ok && strings.TrimSpace(k) != "" {
			out[strings.TrimSpace(k)] = v
		}
	}
	return out
}
