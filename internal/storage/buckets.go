package storage

import (
	"errors"
	"mime"
	"net/url"
	"strings"

	"mcs-go/internal/mcs"
)

// buckets holds the private/public bucket pair every cloud provider uses.
type buckets struct {
	private string
	public  string
}

func (b buckets) name(vis mcs.Visibility) string {
	if vis == mcs.Public {
		return b.public
	}
	return b.private
}

// distinct returns the bucket names to health check, without duplicates.
func (b buckets) distinct() []string {
	if b.private == b.public {
		return []string{b.private}
	}
	return []string{b.private, b.public}
}

// objectURL joins base and key, escaping each key segment.
func objectURL(base, key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.TrimRight(base, "/") + "/" + strings.Join(segments, "/")
}

// contentDisposition builds an attachment header value for fileName.
func contentDisposition(fileName string) string {
	if fileName == "" {
		return "attachment"
	}
	return mime.FormatMediaType("attachment", map[string]string{"filename": fileName})
}

// metaFileName is the object metadata key holding the original file name.
const metaFileName = "file_name"

// existsResult turns a classified lookup error into an Exists result.
func existsResult(err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, mcs.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}
