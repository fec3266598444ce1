// Package classify parses cloud HTTP responses into the CogniteError
// taxonomy (spec §4.4).
package classify

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/cuemby/cdf-extractor-utils/pkg/cogerror"
	"github.com/cuemby/cdf-extractor-utils/pkg/identity"
)

// ResponseError is the shape an HTTP call reports on failure: either a
// non-nil Exception (the call never reached the server, e.g. a dial
// failure) or a Status/Body pair describing what the server returned.
type ResponseError struct {
	Status    int
	Body      []byte
	Exception error
}

// errorBody is the subset of the cloud's JSON error envelope the
// classifier understands. Unknown fields are tolerated (spec §9's
// "typed DTOs, unknown fields tolerated only on responses").
type errorBody struct {
	Error struct {
		Code      int             `json:"code"`
		Message   string          `json:"message"`
		Missing   json.RawMessage `json:"missing"`
		Duplicated json.RawMessage `json:"duplicated"`
	} `json:"error"`
}

var (
	reUnknownParentExternalID = regexp.MustCompile(`Reference to unknown parent with externalId ([^\s,]+)`)
	reParentIDsDoNotExist     = regexp.MustCompile(`The given parent ids do not exist: (.+)`)
	reInvalidDataSetIDs       = regexp.MustCompile(`Invalid dataSetIds: (.+)`)
	reExpectedString          = regexp.MustCompile(`Expected string value`)
	reExpectedNumeric         = regexp.MustCompile(`Expected numeric value`)
)

// Classify turns a ResponseError into a CogniteError[T], per the rules in
// spec §4.4. defaultMissingResource is used when an HTTP 400 carries a
// "missing" array without a more specific message pattern matching
// (e.g. AssetId for a time-series create call).
func Classify[T any](re ResponseError, defaultMissingResource cogerror.ResourceType) *cogerror.CogniteError[T] {
	if re.Exception != nil {
		err := cogerror.New[T](cogerror.Fatal, "", re.Exception.Error())
		err.Exception = re.Exception
		return err
	}

	switch {
	case re.Status == 401 || re.Status == 403:
		return cogerror.New[T](cogerror.Fatal, "", "credentials rejected or not authorized (status "+strconv.Itoa(re.Status)+")")
	case re.Status >= 500, re.Status == 0 && len(re.Body) == 0:
		err := cogerror.New[T](cogerror.TransientFatal, "", "transient failure")
		err.Status = re.Status
		return err
	}

	var body errorBody
	_ = json.Unmarshal(re.Body, &body)
	msg := body.Error.Message

	if re.Status == 400 {
		if len(body.Error.Missing) > 0 {
			return missingError[T](re.Status, body.Error.Missing, defaultMissingResource)
		}
		if m := reUnknownParentExternalID.FindStringSubmatch(msg); m != nil {
			err := cogerror.New[T](cogerror.ItemMissing, cogerror.ResourceParentExternalID, msg)
			err.Status = re.Status
			err.AddValue(m[1])
			err.Complete = false // server returns only one example
			return err
		}
		if m := reParentIDsDoNotExist.FindStringSubmatch(msg); m != nil {
			err := cogerror.New[T](cogerror.ItemMissing, cogerror.ResourceParentID, msg)
			err.Status = re.Status
			for _, id := range splitCSV(m[1]) {
				if n, parseErr := strconv.ParseInt(id, 10, 64); parseErr == nil {
					err.AddValue(identity.ByInternalID(n))
				}
			}
			err.Complete = true
			return err
		}
		if m := reInvalidDataSetIDs.FindStringSubmatch(msg); m != nil {
			err := cogerror.New[T](cogerror.ItemMissing, cogerror.ResourceDataSetID, msg)
			err.Status = re.Status
			for _, id := range splitCSV(m[1]) {
				if n, parseErr := strconv.ParseInt(id, 10, 64); parseErr == nil {
					err.AddValue(identity.ByInternalID(n))
				}
			}
			err.Complete = true
			return err
		}
		if reExpectedString.MatchString(msg) {
			err := cogerror.New[T](cogerror.MismatchedType, cogerror.ResourceDataPointValue, msg)
			err.Status = re.Status
			err.Complete = false
			return err
		}
		if reExpectedNumeric.MatchString(msg) {
			err := cogerror.New[T](cogerror.MismatchedType, cogerror.ResourceDataPointValue, msg)
			err.Status = re.Status
			err.Complete = false
			return err
		}
	}

	if re.Status == 409 && len(body.Error.Duplicated) > 0 {
		return duplicatedError[T](re.Status, body.Error.Duplicated)
	}

	err := cogerror.New[T](cogerror.Fatal, "", msg)
	err.Status = re.Status
	return err
}

func missingError[T any](status int, raw json.RawMessage, resource cogerror.ResourceType) *cogerror.CogniteError[T] {
	err := cogerror.New[T](cogerror.ItemMissing, resource, "items missing")
	err.Status = status
	err.Complete = true

	var entries []map[string]any
	if jsonErr := json.Unmarshal(raw, &entries); jsonErr == nil {
		for _, e := range entries {
			err.AddValue(identityFromKeyMap(e))
		}
		return err
	}

	// Fall back to a plain id/externalId list.
	var ids []map[string]any
	if jsonErr := json.Unmarshal(raw, &ids); jsonErr == nil {
		for _, e := range ids {
			err.AddValue(identityFromKeyMap(e))
		}
	}
	return err
}

func duplicatedError[T any](status int, raw json.RawMessage) *cogerror.CogniteError[T] {
	err := cogerror.New[T](cogerror.ItemExists, cogerror.ResourceExternalID, "items already exist")
	err.Status = status
	err.Complete = true

	var entries []map[string]any
	if jsonErr := json.Unmarshal(raw, &entries); jsonErr == nil {
		for _, e := range entries {
			err.AddValue(identityFromKeyMap(e))
		}
	}
	return err
}

func identityFromKeyMap(e map[string]any) identity.Identity {
	if extID, ok := e["externalId"].(string); ok {
		return identity.ByExternalID(extID)
	}
	if id, ok := e["id"].(float64); ok {
		return identity.ByInternalID(int64(id))
	}
	return identity.Identity{}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
