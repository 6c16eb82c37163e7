// Package identity resolves repository location strings into canonical
// repository identities.
//
// A location may be given in SSH form (git@github.com:owner/name.git) or
// HTTP(S) form (https://github.com/owner/name), including web-UI URLs with
// trailing navigation segments (https://github.com/owner/name/tree/main/...).
// All forms of the same repository resolve to the same identity, so the
// derived ID is safe to use as a join key across the registry, local state,
// and the on-disk owner/name layout.
package identity

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrMalformedLocation is returned when a location string matches neither
// the SSH nor the HTTP(S) address family, or is missing the owner/name
// path segments.
var ErrMalformedLocation = errors.New("malformed repository location")

// Identity is the canonical form of a repository location.
type Identity struct {
	// Host is the hosting server, e.g. "github.com"
	Host string

	// Owner is the user or organization that owns the repository
	Owner string

	// Name is the repository name, without any .git suffix
	Name string

	// CloneAddress is the normalized clone URL, always ending in .git.
	// SSH locations keep their SSH form, HTTP(S) locations keep their scheme.
	CloneAddress string
}

// ID returns the stable identity key: host:owner/name.
//
// The key is derived structurally and never changes for a given repository,
// regardless of which address form it was resolved from.
func (i Identity) ID() string {
	return fmt.Sprintf("%s:%s/%s", i.Host, i.Owner, i.Name)
}

// Resolve parses a location string into an Identity.
//
// Returns ErrMalformedLocation (wrapped with detail) when the string is not
// a recognizable repository address.
func Resolve(location string) (Identity, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return Identity{}, fmt.Errorf("%w: empty location", ErrMalformedLocation)
	}

	if strings.Contains(location, "://") {
		return resolveHTTP(location)
	}
	return resolveSSH(location)
}

// resolveSSH parses scp-like addresses: user@host:owner/name[.git]
func resolveSSH(location string) (Identity, error) {
	at := strings.Index(location, "@")
	colon := strings.Index(location, ":")
	if at < 1 || colon <= at+1 {
		return Identity{}, fmt.Errorf("%w: %q", ErrMalformedLocation, location)
	}

	user := location[:at]
	host := location[at+1 : colon]
	path := strings.Trim(location[colon+1:], "/")

	owner, name, ok := splitOwnerName(path)
	if !ok {
		return Identity{}, fmt.Errorf("%w: %q: expected owner/name after host", ErrMalformedLocation, location)
	}

	return Identity{
		Host:         host,
		Owner:        owner,
		Name:         name,
		CloneAddress: fmt.Sprintf("%s@%s:%s/%s.git", user, host, owner, name),
	}, nil
}

// resolveHTTP parses scheme://host/owner/name[.git][/extra...] addresses.
// Extra path segments beyond owner/name are web-UI navigation and stripped.
func resolveHTTP(location string) (Identity, error) {
	u, err := url.Parse(location)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %q: %v", ErrMalformedLocation, location, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "ssh" {
		return Identity{}, fmt.Errorf("%w: %q: unsupported scheme %q", ErrMalformedLocation, location, u.Scheme)
	}
	if u.Host == "" {
		return Identity{}, fmt.Errorf("%w: %q: missing host", ErrMalformedLocation, location)
	}

	owner, name, ok := splitOwnerName(strings.Trim(u.Path, "/"))
	if !ok {
		return Identity{}, fmt.Errorf("%w: %q: expected owner/name after host", ErrMalformedLocation, location)
	}

	host := u.Hostname()
	addr := fmt.Sprintf("%s://%s/%s/%s.git", u.Scheme, u.Host, owner, name)
	if u.Scheme == "ssh" {
		// ssh://git@host/owner/name normalizes to scp form
		user := "git"
		if u.User != nil && u.User.Username() != "" {
			user = u.User.Username()
		}
		addr = fmt.Sprintf("%s@%s:%s/%s.git", user, host, owner, name)
	}

	return Identity{
		Host:         host,
		Owner:        owner,
		Name:         name,
		CloneAddress: addr,
	}, nil
}

// splitOwnerName extracts the first two path segments and strips any .git
// suffix from the name. Returns false if fewer than two segments exist.
func splitOwnerName(path string) (owner, name string, ok bool) {
	segments := strings.Split(path, "/")
	if len(segments) < 2 || segments[0] == "" || segments[1] == "" {
		return "", "", false
	}

	owner = segments[0]
	name = strings.TrimSuffix(segments[1], ".git")
	if name == "" {
		return "", "", false
	}

	return owner, name, true
}
