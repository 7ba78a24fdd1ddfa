package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Scheme is the authorization scheme prefix understood by the integration API.
const Scheme = "HMAC_1"

// DateLayout matches the x-dapi-date header format yyyy-MM-ddTHH:mm:ssZ.
const DateLayout = "2006-01-02T15:04:05-0700"

// DapiDate formats t for the x-dapi-date header.
func DapiDate(t time.Time) string {
	return t.Format(DateLayout)
}

// PathInfo strips the scheme and host from rawURL, keeping the path and query.
func PathInfo(rawURL string) string {
	rest := rawURL
	if _, after, ok := strings.Cut(rawURL, "://"); ok {
		rest = after
	}
	idx := strings.Index(rest, "/")
	if idx < 0 {
		return "/"
	}
	return rest[idx:]
}

// SigningBase builds the canonical string that gets signed. Header values are
// ordered by key name and lower-cased; a POST body is appended lower-cased.
func SigningBase(method, rawURL, date string, body []byte, hasBody bool) string {
	headers := map[string]string{
		"method":   method,
		"pathInfo": PathInfo(rawURL),
		"date":     date,
	}
	keys := make([]string, 0, len(headers))
	for key := range headers {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var builder strings.Builder
	for _, key := range keys {
		builder.WriteString(strings.ToLower(headers[key]))
	}
	if strings.EqualFold(method, "POST") && hasBody {
		builder.WriteString(strings.ToLower(string(body)))
	}
	return builder.String()
}

// Sign computes the Base64 HMAC-SHA256 signature for the request.
func Sign(secret, method, rawURL, date string, body []byte, hasBody bool) (string, error) {
	mac := hmac.New(sha256.New, []byte(secret))
	if _, err := mac.Write([]byte(SigningBase(method, rawURL, date, body, hasBody))); err != nil {
		return "", fmt.Errorf("sign payload: %w", err)
	}
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// Authorization renders the Authorization header value.
func Authorization(accessKey, signature, user string) string {
	return Scheme + " " + accessKey + ":" + signature + ":" + user
}
