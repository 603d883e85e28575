package cmn

import (
	"math/rand"
	"sync"
	"time"

	"github.com/teris-io/shortid"
)

// Alphabet for generating short, human-readable IDs. Ported from the
// teacher's cmn.uuidABC, unchanged: len > 0x3f matters for GenTie below.
const uuidABC = "-5nZJDft6LuzsjGNpPwY7rQa39vehq4i1cV2FROo8yHSlC0BUEdWbIxMmTgKXAk_"

var (
	sidOnce sync.Once
	sid     *shortid.Shortid
)

func initShortID() {
	sidOnce.Do(func() {
		sid = shortid.MustNew(4 /*worker*/, uuidABC, uint64(time.Now().UnixNano()))
	})
}

// GenUUID generates a short, human-readable ID. No other package in this
// module calls it.
func GenUUID() string {
	initShortID()
	uuid := sid.MustGenerate()
	var h, t string
	if !isAlpha(uuid[0]) {
		h = string(rune('A' + rand.Intn(26)))
	}
	if c := uuid[len(uuid)-1]; c == '-' || c == '_' {
		t = string(rune('a' + rand.Intn(26)))
	}
	return h + uuid + t
}

// IsValidUUID reports whether s looks like an ID produced by GenUUID.
func IsValidUUID(s string) bool {
	const idlen = 9 // per https://github.com/teris-io/shortid#id-length
	return len(s) >= idlen && isAlpha(s[0])
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
