package report

import (
	"math/big"
	"strings"
)

// MatchingPrefix counts the leading bits of candidate that agree with the
// same-length prefix of secret.
func MatchingPrefix(candidate, secret *big.Int) int {
	if candidate == nil || secret == nil || candidate.Sign() <= 0 {
		return 0
	}
	n := candidate.BitLen()
	if n > secret.BitLen() {
		n = secret.BitLen()
	}
	cTop, sTop := candidate.BitLen()-1, secret.BitLen()-1
	for i := 0; i < n; i++ {
		if candidate.Bit(cTop-i) != secret.Bit(sTop-i) {
			return i
		}
	}
	return n
}

// FormatProgress renders candidate in binary. When secret is known the
// remaining bits are shown as '.' and the first wrong bit is bracketed:
//
//	1001[0]......
func FormatProgress(candidate, secret *big.Int) string {
	if candidate == nil {
		return ""
	}
	bits := candidate.Text(2)
	if secret == nil {
		return bits
	}

	match := MatchingPrefix(candidate, secret)
	var b strings.Builder
	for i, ch := range bits {
		if i == match && match < len(bits) {
			b.WriteByte('[')
			b.WriteRune(ch)
			b.WriteByte(']')
			continue
		}
		b.WriteRune(ch)
	}
	if rest := secret.BitLen() - len(bits); rest > 0 {
		b.WriteString(strings.Repeat(".", rest))
	}
	return b.String()
}
