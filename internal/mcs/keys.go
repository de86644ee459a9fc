package mcs

import (
	"crypto/rand"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

const (
	contentHashPrivate = "private:"
	contentHashPublic  = "public:"

	defaultAttachedToType = "File"
	suffixAlphabet        = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	suffixLength          = 8
)

var unsafeKeyChars = regexp.MustCompile(`[^0-9a-zA-Z._-]`)

// KeyGenerator derives object keys of the form
//
//	[folder/]YYYY/MM/DD/<attached to type>/<suffix>_<sanitized file name>
type KeyGenerator struct {
	folder string
	clock  Clock
	suffix func() string
}

// NewKeyGenerator creates a KeyGenerator. A nil suffix uses RandomSuffix.
func NewKeyGenerator(folder string, clock Clock, suffix func() string) *KeyGenerator {
	if suffix == nil {
		suffix = RandomSuffix
	}
	return &KeyGenerator{
		folder: strings.Trim(folder, "/"),
		clock:  clock,
		suffix: suffix,
	}
}

// Generate returns a fresh key for fileName.
func (g *KeyGenerator) Generate(fileName, attachedToType string) string {
	if attachedToType == "" {
		attachedToType = defaultAttachedToType
	}

	prefix := g.clock.Now().Format("2006/01/02") + "/" + attachedToType
	if g.folder != "" {
		prefix = g.folder + "/" + prefix
	}
	return fmt.Sprintf("%s/%s_%s", prefix, g.suffix(), SanitizeFileName(fileName))
}

// SanitizeFileName replaces spaces with underscores and drops every character
// outside [0-9a-zA-Z._-].
func SanitizeFileName(name string) string {
	name = strings.ReplaceAll(name, " ", "_")
	return unsafeKeyChars.ReplaceAllString(name, "")
}

// RandomSuffix returns 8 characters drawn uniformly from A-Z0-9.
func RandomSuffix() string {
	// Bytes at or above limit are rejected so every character is equally likely.
	const limit = 256 - 256%len(suffixAlphabet)

	out := make([]byte, 0, suffixLength)
	buf := make([]byte, suffixLength*2)
	for len(out) < suffixLength {
		rand.Read(buf)
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, suffixAlphabet[int(b)%len(suffixAlphabet)])
			if len(out) == suffixLength {
				break
			}
		}
	}
	return string(out)
}

// ContentHash encodes where key is stored: "private:<key>" or "public:<key>".
func ContentHash(key string, vis Visibility) string {
	if vis == Public {
		return contentHashPublic + key
	}
	return contentHashPrivate + key
}

// ParseContentHash splits a content hash into key and visibility.
// A hash without a known prefix is treated as a private key.
func ParseContentHash(hash string) (string, Visibility) {
	s := strings.TrimSpace(hash)
	switch {
	case strings.HasPrefix(s, contentHashPrivate):
		return strings.TrimSpace(s[len(contentHashPrivate):]), Private
	case strings.HasPrefix(s, contentHashPublic):
		return strings.TrimSpace(s[len(contentHashPublic):]), Public
	default:
		return s, Private
	}
}

// PrivateURL builds the proxy URL stored on private records. The proxy
// resolves it to a signed URL at download time.
func PrivateURL(proxyPath, contentHash, fileName string) string {
	return proxyPath + "?key=" + url.QueryEscape(contentHash) + "&file_name=" + url.QueryEscape(fileName)
}
