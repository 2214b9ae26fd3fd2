// Package coordinate provides the immutable identity of an artifact in a
// repository: group, name, version, extension and optional classifier.
package coordinate

import (
	"fmt"
	"path"
	"strings"
)

// DefaultExtension is the extension assumed when none is given.
const DefaultExtension = "zip"

// Coordinate identifies one artifact. It is a comparable value type and is
// used directly as a map key.
type Coordinate struct {
	Group      string
	Name       string
	Version    string
	Extension  string
	Classifier string
}

// Parse parses group:name[:extension[:classifier]]:version.
func Parse(s string) (Coordinate, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	for _, p := range parts {
		if p == "" {
			return Coordinate{}, fmt.Errorf("invalid coordinate %q: empty segment", s)
		}
	}

	var c Coordinate
	switch len(parts) {
	case 3:
		c = Coordinate{Group: parts[0], Name: parts[1], Version: parts[2]}
	case 4:
		c = Coordinate{Group: parts[0], Name: parts[1], Extension: parts[2], Version: parts[3]}
	case 5:
		c = Coordinate{Group: parts[0], Name: parts[1], Extension: parts[2], Classifier: parts[3], Version: parts[4]}
	default:
		return Coordinate{}, fmt.Errorf("invalid coordinate %q (expected group:name[:extension[:classifier]]:version)", s)
	}

	if c.Extension == "" {
		c.Extension = DefaultExtension
	}
	if err := c.validate(); err != nil {
		return Coordinate{}, fmt.Errorf("invalid coordinate %q: %w", s, err)
	}
	return c, nil
}

// ParsePrefix parses a versionless group:name prefix.
func ParsePrefix(s string) (Coordinate, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Coordinate{}, fmt.Errorf("invalid coordinate prefix %q (expected group:name)", s)
	}
	return Coordinate{Group: parts[0], Name: parts[1], Extension: DefaultExtension}, nil
}

// MustParse is like Parse but panics on error. For tests and constants.
func MustParse(s string) Coordinate {
	c, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Coordinate) validate() error {
	for field, v := range map[string]string{"group": c.Group, "name": c.Name, "version": c.Version, "extension": c.Extension} {
		if v == "" {
			return fmt.Errorf("%s must not be empty", field)
		}
		if strings.ContainsAny(v, "/\\ ") {
			return fmt.Errorf("%s %q contains an illegal character", field, v)
		}
	}
	if strings.ContainsAny(c.Classifier, "/\\ ") {
		return fmt.Errorf("classifier %q contains an illegal character", c.Classifier)
	}
	return nil
}

// String returns the canonical form. The extension is omitted when it is
// the default and no classifier is present.
func (c Coordinate) String() string {
	var b strings.Builder
	b.WriteString(c.Group)
	b.WriteByte(':')
	b.WriteString(c.Name)

	ext := c.ext()
	if c.Classifier != "" {
		b.WriteByte(':')
		b.WriteString(ext)
		b.WriteByte(':')
		b.WriteString(c.Classifier)
	} else if ext != DefaultExtension {
		b.WriteByte(':')
		b.WriteString(ext)
	}

	if c.Version != "" {
		b.WriteByte(':')
		b.WriteString(c.Version)
	}
	return b.String()
}

// Prefix returns group:name, the key used for nearest-wins conflict
// resolution and catalog lookups.
func (c Coordinate) Prefix() string {
	return c.Group + ":" + c.Name
}

// Equal reports whether c and o identify the same artifact.
func (c Coordinate) Equal(o Coordinate) bool {
	return c.String() == o.String()
}

// IsZero reports whether c is the zero value.
func (c Coordinate) IsZero() bool {
	return c == Coordinate{}
}

// WithVersion returns a copy of c at version v.
func (c Coordinate) WithVersion(v string) Coordinate {
	c.Version = v
	return c
}

// WithExtension returns a copy of c with extension ext and no classifier.
func (c Coordinate) WithExtension(ext string) Coordinate {
	c.Extension = ext
	c.Classifier = ""
	return c
}

// POM returns the coordinate of c's dependency descriptor.
func (c Coordinate) POM() Coordinate {
	return c.WithExtension("pom")
}

// Dir returns the slash-separated directory holding every file of this version.
func (c Coordinate) Dir() string {
	return path.Join(c.groupPath(), c.Name, c.Version)
}

// Path returns the slash-separated relative repository path:
// group/as/path/name/version/name-version[-classifier].ext
func (c Coordinate) Path() string {
	return path.Join(c.Dir(), c.FileName())
}

// FileName returns name-version[-classifier].ext.
func (c Coordinate) FileName() string {
	file := c.Name + "-" + c.Version
	if c.Classifier != "" {
		file += "-" + c.Classifier
	}
	return file + "." + c.ext()
}

// MetadataPath returns the path of the per-artifact version listing:
// group/as/path/name/maven-metadata.xml
func (c Coordinate) MetadataPath() string {
	return path.Join(c.groupPath(), c.Name, "maven-metadata.xml")
}

func (c Coordinate) groupPath() string {
	return strings.ReplaceAll(c.Group, ".", "/")
}

func (c Coordinate) ext() string {
	if c.Extension == "" {
		return DefaultExtension
	}
	return c.Extension
}

// MarshalText implements encoding.TextMarshaler.
func (c Coordinate) MarshalText() ([]byte, error) {
	if c.IsZero() {
		return []byte{}, nil
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Coordinate) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*c = Coordinate{}
		return nil
	}
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
