package dockerfile

import (
	"fmt"
	"strings"
)

const superuser = "root"

// MarkerLine returns the marker framing an inserted patch block. Round-trip
// tooling greps for this exact format.
func MarkerLine(image string) string {
	return fmt.Sprintf("######## dockerfile-patch patch for %s ########", image)
}

// IsRootUser reports whether a USER value (possibly "user:group") already
// runs as the superuser. An absent value counts as root: the patch then
// needs no privilege bracketing.
func IsRootUser(user string) bool {
	u := user
	if i := strings.IndexByte(u, ':'); i >= 0 {
		u = u[:i]
	}
	return u == "" || u == superuser || u == "0"
}

// Patch returns the Dockerfile text with patchText inserted directly after
// the FROM line, framed by marker lines. When user is not the superuser the
// patch is bracketed by a switch to root and a switch back.
//
// A patch that is empty after trimming means "no patch applies": the result
// is the original Dockerfile, byte-for-byte, with no markers. The same
// (BuildFile, patchText, user) always yields identical output.
func (b *BuildFile) Patch(patchText, user string) string {
	if strings.TrimSpace(patchText) == "" {
		return b.String()
	}

	marker := MarkerLine(b.image.String())
	bracket := !IsRootUser(user)

	var sb strings.Builder
	for _, ln := range b.preamble {
		sb.WriteString(ln)
	}
	sb.WriteString(ensureNewline(b.fromLine))
	sb.WriteString(marker + "\n")
	if bracket {
		sb.WriteString("USER " + superuser + "\n")
	}
	sb.WriteString(strings.Trim(patchText, "\n") + "\n")
	sb.WriteString(marker + "\n")
	if bracket {
		sb.WriteString("USER " + user + "\n")
	}
	for _, ln := range b.remainder {
		sb.WriteString(ln)
	}
	return sb.String()
}

func ensureNewline(line string) string {
	if strings.HasSuffix(line, "\n") {
		return line
	}
	return line + "\n"
}
