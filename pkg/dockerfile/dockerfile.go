// Package dockerfile locates the base image declaration of a Dockerfile and
// splices patch text in directly after it.
//
// Only the first FROM instruction is considered; later stages of a
// multi-stage build are carried through untouched. This is a known
// limitation, not an oversight.
package dockerfile

import (
	"strings"

	"github.com/google/go-containerregistry/pkg/name"
	"github.com/pkg/errors"
)

// BuildFile is a Dockerfile segmented around its first FROM instruction.
// Lines are stored raw, with their original terminators, so that String
// reproduces the input byte-for-byte.
type BuildFile struct {
	preamble  []string
	fromLine  string
	remainder []string

	image ImageReference
}

// Image returns the base image reference of the first FROM instruction.
func (b *BuildFile) Image() ImageReference {
	return b.image
}

// Preamble returns the raw text before the FROM line.
func (b *BuildFile) Preamble() string {
	return strings.Join(b.preamble, "")
}

// FromLine returns the raw FROM line.
func (b *BuildFile) FromLine() string {
	return b.fromLine
}

// Remainder returns the raw text after the FROM line.
func (b *BuildFile) Remainder() string {
	return strings.Join(b.remainder, "")
}

// String reassembles the unpatched Dockerfile, byte-for-byte.
func (b *BuildFile) String() string {
	var sb strings.Builder
	for _, ln := range b.preamble {
		sb.WriteString(ln)
	}
	sb.WriteString(b.fromLine)
	for _, ln := range b.remainder {
		sb.WriteString(ln)
	}
	return sb.String()
}

// ImageReference is a normalized Docker image reference. The raw form from
// the Dockerfile is preserved and used verbatim when starting containers.
type ImageReference struct {
	raw string
	ref name.Reference
}

// ParseImageReference normalizes an image reference, defaulting the tag to
// "latest" when absent.
func ParseImageReference(raw string) (ImageReference, error) {
	ref, err := name.ParseReference(raw, name.WeakValidation)
	if err != nil {
		return ImageReference{}, errors.Wrapf(err, "invalid image reference %q", raw)
	}
	return ImageReference{raw: raw, ref: ref}, nil
}

// Repository returns the repository part of the reference.
func (r ImageReference) Repository() string {
	return r.ref.Context().RepositoryStr()
}

// Tag returns the tag part of the reference ("latest" when the Dockerfile
// omitted it), or the empty string for digest references.
func (r ImageReference) Tag() string {
	if tag, ok := r.ref.(name.Tag); ok {
		return tag.TagStr()
	}
	return ""
}

// String returns the reference exactly as written in the Dockerfile.
func (r ImageReference) String() string {
	return r.raw
}
