package sanitize

import "sort"

// clampMetadata truncates keys/values to their byte budgets, then drops
// entries — in a deterministic (sorted-key) order so sanitize is
// idempotent — until the pair count and total serialized size both fit
// their budgets (spec §6 metadata limits).
func clampMetadata(m map[string]string, maxKeys, maxKeyBytes, maxValueBytes, maxTotalBytes int) map[string]string {
	if len(m) == 0 {
		return m
	}

	truncated := make(map[string]string, len(m))
	keys := make([]string, 0, len(m))
	for k, v := range m {
		nk, nv := k, v
		if maxKeyBytes > 0 {
			nk = TruncateUTF8(k, maxKeyBytes)
		}
		if maxValueBytes > 0 {
			nv = TruncateUTF8(v, maxValueBytes)
		}
		if nk == "" {
			continue
		}
		truncated[nk] = nv
		keys = append(keys, nk)
	}
	sort.Strings(keys)

	if maxKeys > 0 && len(keys) > maxKeys {
		keys = keys[:maxKeys]
	}

	out := make(map[string]string, len(keys))
	total := 0
	for _, k := range keys {
		v := truncated[k]
		pairSize := len(k) + len(v)
		if maxTotalBytes > 0 && total+pairSize > maxTotalBytes {
			break
		}
		out[k] = v
		total += pairSize
	}
	return out
}

// metadataSerializedSize is the total key+value byte size used against
// MetadataTotalBytes.
func metadataSerializedSize(m map[string]string) int {
	total := 0
	for k, v := range m {
		total += len(k) + len(v)
	}
	return total
}
