package imagecache

import (
	"encoding/hex"
	"strings"

	"github.com/reusee/mmh3"
)

const maxNameLength = 64

func isSafeChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') ||
		c == '.' || c == '_' || c == '-'
}

func isSafeName(id string) bool {
	if id == "" || id[0] == '.' || len(id) > maxNameLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if !isSafeChar(id[i]) {
			return false
		}
	}
	return true
}

// filename maps an identifier to the name of its file. Identifiers which are
// safe file names are used as is, all others are sanitized and suffixed with
// a hash of the identifier so that distinct identifiers keep distinct files.
func filename(id string) string {
	if isSafeName(id) {
		return id
	}
	var b strings.Builder
	for i := 0; i < len(id) && b.Len() < maxNameLength; i++ {
		if isSafeChar(id[i]) {
			b.WriteByte(id[i])
		} else {
			b.WriteByte('_')
		}
	}
	h := mmh3.New128()
	h.Write([]byte(id))
	return strings.TrimLeft(b.String(), ".") + "-" + hex.EncodeToString(h.Sum(nil))
}
