package crate

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// MetadataFile is the name of the metadata document at the crate root.
const MetadataFile = "ro-crate-metadata.json"

var (
	ErrReadOnly    = errors.New("crate opened read-only")
	ErrNotFound    = errors.New("crate metadata not found")
	ErrDuplicateID = errors.New("entity id already present in crate")
)

// Store is the metadata store the provenance core reads from and appends to.
// AppendEntities must be all-or-nothing. ReadEntities returns entities in
// the order they were appended.
type Store interface {
	ReadEntities(ctx context.Context) ([]*Entity, error)
	ReadEntityMap(ctx context.Context) (map[string]*Entity, error)
	AppendEntities(ctx context.Context, entities []*Entity) error
	GenerateID(kind Kind, name string) string
	Root() string
}

// EntityMap keys entities by id. A later entity replaces an earlier one with
// the same id.
func EntityMap(entities []*Entity) map[string]*Entity {
	out := make(map[string]*Entity, len(entities))
	for _, e := range entities {
		out[e.ID] = e
	}
	return out
}

var slugInvalid = regexp.MustCompile(`[^a-z0-9]+`)

const maxSlugLen = 48

// NewID mints an identifier of the form ark:59852/<kind>-<slug>-<uuid>.
func NewID(kind Kind, name string) string {
	k := strings.ToLower(string(kind))
	if k == "" {
		k = "entity"
	}
	slug := Slug(name)
	if slug == "" {
		return "ark:59852/" + k + "-" + uuid.NewString()
	}
	return "ark:59852/" + k + "-" + slug + "-" + uuid.NewString()
}

// Slug lower-cases name and collapses every run of other characters into a
// single hyphen.
func Slug(name string) string {
	s := slugInvalid.ReplaceAllString(strings.ToLower(name), "-")
	s = strings.Trim(s, "-")
	if len(s) > maxSlugLen {
		s = strings.TrimRight(s[:maxSlugLen], "-")
	}
	return s
}

// ContentURL renders a crate-relative path the way entities reference files.
func ContentURL(rel string) string {
	return "file:///" + strings.TrimLeft(strings.ReplaceAll(rel, "\\", "/"), "/")
}

// RelativeContentPath returns the crate-relative path of a file:// content
// URL, or false for remote and empty URLs.
func RelativeContentPath(contentURL string) (string, bool) {
	u := strings.TrimSpace(contentURL)
	switch {
	case u == "":
		return "", false
	case strings.HasPrefix(u, "file://"):
		rel := strings.TrimLeft(strings.TrimPrefix(u, "file://"), "/")
		return rel, rel != ""
	case strings.Contains(u, "://"):
		return "", false
	default:
		rel := strings.TrimLeft(u, "/")
		return rel, rel != ""
	}
}
