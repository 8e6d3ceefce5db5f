package textutil

import "strings"

// NormalizeStringMap trims keys and values, removing entries with empty keys.
func NormalizeStringMap(values map[string]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	result := make(map[string]string, len(values))
	for key, value := range values {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			continue
		}
		result[trimmedKey] = strings.TrimSpace(value)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

// CompactStringMap normalizes values and additionally drops entries whose
// value trims to empty. Useful for message attributes where empty values
// carry no information.
func CompactStringMap(values map[string]string) map[string]string {
	result := NormalizeStringMap(values)
	for key, value := range result {
		if value == "" {
			delete(result, key)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
