package sanitize

import "github.com/cuemby/cdf-extractor-utils/pkg/cogerror"

// EntityOps binds the per-item operations CleanRequest needs for one
// entity type: how to sanitize (mutate) it, how to verify it, and what its
// declared unique key is (ExternalId for assets, LegacyName for time
// series, Id+ExternalId for updates, etc. — spec §4.3).
type EntityOps[T any] struct {
	Sanitize func(item *T)
	Verify   func(item *T) (cogerror.ResourceType, bool)
	Key      func(item *T) (key any, hasKey bool)
}

// CleanRequest applies mode to items (None: no-op; Clean: sanitize then
// drop verify-failures; Remove: drop verify-failures without mutating),
// then deduplicates by ops.Key, keeping the first occurrence of each key
// and reporting subsequent occurrences as ItemDuplicated (spec §4.3).
// Dedup runs regardless of mode, since spec describes it as something
// cleanRequest does "additionally" to the mode-driven step.
func CleanRequest[T any](items []*T, mode Mode, ops EntityOps[T]) (cleaned []*T, errs []*cogerror.CogniteError[*T]) {
	var sanitationErr *cogerror.CogniteError[*T]
	var dupErr *cogerror.CogniteError[*T]
	seen := make(map[any]struct{}, len(items))

	cleaned = make([]*T, 0, len(items))
	for _, item := range items {
		switch mode {
		case Clean:
			ops.Sanitize(item)
			if resource, bad := ops.Verify(item); bad {
				if sanitationErr == nil {
					sanitationErr = cogerror.New[*T](cogerror.SanitationFailed, resource, "item failed verification after sanitation")
				}
				sanitationErr.Skipped = append(sanitationErr.Skipped, item)
				continue
			}
		case Remove:
			if resource, bad := ops.Verify(item); bad {
				if sanitationErr == nil {
					sanitationErr = cogerror.New[*T](cogerror.SanitationFailed, resource, "item failed verification")
				}
				sanitationErr.Skipped = append(sanitationErr.Skipped, item)
				continue
			}
		case None:
			// no mutation, no verify-drop
		}

		if ops.Key != nil {
			if key, hasKey := ops.Key(item); hasKey {
				if _, dup := seen[key]; dup {
					if dupErr == nil {
						dupErr = cogerror.New[*T](cogerror.ItemDuplicated, cogerror.ResourceExternalID, "duplicate key within request")
					}
					dupErr.AddValue(key)
					dupErr.Skipped = append(dupErr.Skipped, item)
					continue
				}
				seen[key] = struct{}{}
			}
		}

		cleaned = append(cleaned, item)
	}

	if sanitationErr != nil {
		errs = append(errs, sanitationErr)
	}
	if dupErr != nil {
		errs = append(errs, dupErr)
	}
	return cleaned, errs
}
