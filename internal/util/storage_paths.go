package util

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var unsafePathChars = regexp.MustCompile(`[^A-Za-z0-9_.()\-]`)

// SanitizePart makes a model or file name safe to use as one path segment.
// Case is preserved so artifact names round-trip.
func SanitizePart(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "_")
	s = unsafePathChars.ReplaceAllString(s, "")
	s = strings.Trim(s, ".")
	if s == "" {
		return "unknown"
	}
	return s
}

func GSURL(bucket, objectPath string) string {
	return fmt.Sprintf("gs://%s/%s", bucket, strings.TrimPrefix(objectPath, "/"))
}

func S3URL(bucket, key string) string {
	return fmt.Sprintf("s3://%s/%s", bucket, strings.TrimPrefix(key, "/"))
}

// ParseObjectURL splits gs:// and s3:// URLs into bucket and object key.
func ParseObjectURL(raw string) (scheme, bucket, key string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", "", err
	}
	if u.Scheme != "gs" && u.Scheme != "s3" {
		return "", "", "", fmt.Errorf("unsupported object url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", "", "", fmt.Errorf("object url %q has no bucket", raw)
	}
	return u.Scheme, u.Host, strings.TrimPrefix(u.Path, "/"), nil
}
