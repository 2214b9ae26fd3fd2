package repository

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// Reference locates one repository: a base URL or local path plus optional
// basic credentials. Stateless.
type Reference struct {
	URL      string `json:"url"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// ParseReference parses a repository location. Accepted forms are
// http(s)://[user:pass@]host/path, file:///path and a bare local path.
// Credentials embedded in an http URL are moved into the reference.
func ParseReference(raw string) (Reference, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Reference{}, fmt.Errorf("empty repository location")
	}

	if !strings.Contains(raw, "://") {
		abs, err := filepath.Abs(raw)
		if err != nil {
			return Reference{}, fmt.Errorf("resolving repository path %q: %w", raw, err)
		}
		return Reference{URL: abs}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Reference{}, fmt.Errorf("parsing repository URL %q: %w", raw, err)
	}

	switch u.Scheme {
	case "file":
		return Reference{URL: filepath.FromSlash(u.Path)}, nil
	case "http", "https":
		ref := Reference{}
		if u.User != nil {
			ref.Username = u.User.Username()
			ref.Password, _ = u.User.Password()
			u.User = nil
		}
		u.Path = strings.TrimSuffix(u.Path, "/")
		ref.URL = u.String()
		return ref, nil
	default:
		return Reference{}, fmt.Errorf("unsupported repository scheme %q in %q", u.Scheme, raw)
	}
}

// MustParseReference is like ParseReference but panics on error.
func MustParseReference(raw string) Reference {
	ref, err := ParseReference(raw)
	if err != nil {
		panic(err)
	}
	return ref
}

// IsLocal reports whether the reference points at the local filesystem.
func (r Reference) IsLocal() bool {
	return !strings.HasPrefix(r.URL, "http://") && !strings.HasPrefix(r.URL, "https://")
}

// WithCredentials returns r carrying username and password unless it
// already has credentials of its own.
func (r Reference) WithCredentials(username, password string) Reference {
	if r.IsLocal() || r.Username != "" || username == "" {
		return r
	}
	r.Username = username
	r.Password = password
	return r
}

// String returns the location without credentials.
func (r Reference) String() string {
	return r.URL
}
