package analysis

import (
	"fmt"
	"strings"
)

const storageScheme = "s3://"

// ResolveLocator turns a media locator into a bucket and object key.
// A locator without the storage scheme is resolved relative to the
// default bucket. The key starts after the first path separator and
// may itself contain separators.
func ResolveLocator(locator, defaultBucket string) (bucket, key string, err error) {
	if locator == "" {
		return "", "", fmt.Errorf("empty media locator")
	}

	if !strings.HasPrefix(locator, storageScheme) {
		if defaultBucket == "" {
			return "", "", fmt.Errorf("media bucket not configured for relative locator %q", locator)
		}
		locator = storageScheme + defaultBucket + "/" + locator
	}

	rest := strings.TrimPrefix(locator, storageScheme)
	bucket, key, found := strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", fmt.Errorf("malformed media locator %q", locator)
	}

	return bucket, key, nil
}
