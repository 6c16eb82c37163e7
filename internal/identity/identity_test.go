package identity

import (
	"errors"
	"testing"
)

func TestResolveSSH(t *testing.T) {
	tests := []struct {
		name     string
		location string
		want     Identity
	}{
		{
			name:     "plain scp form",
			location: "git@github.com:torvalds/linux",
			want: Identity{
				Host:         "github.com",
				Owner:        "torvalds",
				Name:         "linux",
				CloneAddress: "git@github.com:torvalds/linux.git",
			},
		},
		{
			name:     "scp form with .git suffix",
			location: "git@github.com:torvalds/linux.git",
			want: Identity{
				Host:         "github.com",
				Owner:        "torvalds",
				Name:         "linux",
				CloneAddress: "git@github.com:torvalds/linux.git",
			},
		},
		{
			name:     "custom user and host",
			location: "deploy@git.example.org:infra/ansible.git",
			want: Identity{
				Host:         "git.example.org",
				Owner:        "infra",
				Name:         "ansible",
				CloneAddress: "deploy@git.example.org:infra/ansible.git",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.location)
			if err != nil {
				t.Fatalf("Resolve(%q) failed: %v", tt.location, err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %+v, want %+v", tt.location, got, tt.want)
			}
		})
	}
}

func TestResolveHTTP(t *testing.T) {
	tests := []struct {
		name     string
		location string
		want     Identity
	}{
		{
			name:     "https without suffix",
			location: "https://github.com/torvalds/linux",
			want: Identity{
				Host:         "github.com",
				Owner:        "torvalds",
				Name:         "linux",
				CloneAddress: "https://github.com/torvalds/linux.git",
			},
		},
		{
			name:     "https with .git suffix",
			location: "https://github.com/torvalds/linux.git",
			want: Identity{
				Host:         "github.com",
				Owner:        "torvalds",
				Name:         "linux",
				CloneAddress: "https://github.com/torvalds/linux.git",
			},
		},
		{
			name:     "web UI navigation path stripped",
			location: "https://github.com/torvalds/linux/tree/master/kernel/sched",
			want: Identity{
				Host:         "github.com",
				Owner:        "torvalds",
				Name:         "linux",
				CloneAddress: "https://github.com/torvalds/linux.git",
			},
		},
		{
			name:     "plain http",
			location: "http://git.example.org/infra/ansible",
			want: Identity{
				Host:         "git.example.org",
				Owner:        "infra",
				Name:         "ansible",
				CloneAddress: "http://git.example.org/infra/ansible.git",
			},
		},
		{
			name:     "ssh scheme normalizes to scp form",
			location: "ssh://git@github.com/torvalds/linux.git",
			want: Identity{
				Host:         "github.com",
				Owner:        "torvalds",
				Name:         "linux",
				CloneAddress: "git@github.com:torvalds/linux.git",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.location)
			if err != nil {
				t.Fatalf("Resolve(%q) failed: %v", tt.location, err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %+v, want %+v", tt.location, got, tt.want)
			}
		})
	}
}

// All address families of the same repository must produce the same ID.
func TestIDStableAcrossForms(t *testing.T) {
	forms := []string{
		"git@github.com:torvalds/linux",
		"git@github.com:torvalds/linux.git",
		"https://github.com/torvalds/linux",
		"https://github.com/torvalds/linux.git",
		"https://github.com/torvalds/linux/blob/master/README",
		"ssh://git@github.com/torvalds/linux",
	}

	const want = "github.com:torvalds/linux"
	for _, form := range forms {
		id, err := Resolve(form)
		if err != nil {
			t.Fatalf("Resolve(%q) failed: %v", form, err)
		}
		if got := id.ID(); got != want {
			t.Errorf("Resolve(%q).ID() = %q, want %q", form, got, want)
		}
	}
}

func TestResolveMalformed(t *testing.T) {
	locations := []string{
		"",
		"   ",
		"not a url",
		"github.com/torvalds/linux",        // no scheme, no user@
		"git@github.com:linux",             // single path segment
		"https://github.com/linux",         // single path segment
		"https://github.com/",              // no segments
		"https:///torvalds/linux",          // missing host
		"ftp://github.com/torvalds/linux",  // unsupported scheme
		"git@:torvalds/linux",              // empty host
		"@github.com:torvalds/linux",       // empty user
		"git@github.com:torvalds/.git",     // empty name
	}

	for _, location := range locations {
		if _, err := Resolve(location); !errors.Is(err, ErrMalformedLocation) {
			t.Errorf("Resolve(%q) = %v, want ErrMalformedLocation", location, err)
		}
	}
}
