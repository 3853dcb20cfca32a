package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
)

// Remote is one replay server the CLI can talk to.
type Remote struct {
	URL         string `toml:"url" json:"url"`
	GRPCAddr    string `toml:"grpc_addr,omitempty" json:"grpc_addr,omitempty"`
	Token       string `toml:"token,omitempty" json:"-"`
	NATSURL     string `toml:"nats_url,omitempty" json:"nats_url,omitempty"`
	Description string `toml:"description,omitempty" json:"description,omitempty"`
}

// remoteBook is the remotes.toml file: named remotes plus the active one.
type remoteBook struct {
	Active  string            `toml:"active"`
	Remotes map[string]Remote `toml:"remotes"`

	path string
}

var errNoRemote = errors.New("no such remote")

// remotesPath is $FLEETREPLAY_REMOTES, or remotes.toml under
// ~/.local/state/fleetreplay.
func remotesPath() (string, error) {
	if p := os.Getenv("FLEETREPLAY_REMOTES"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", "fleetreplay", "remotes.toml"), nil
}

// openRemoteBook reads the remotes file. A missing file is an empty book.
func openRemoteBook() (*remoteBook, error) {
	path, err := remotesPath()
	if err != nil {
		return nil, err
	}
	b := &remoteBook{path: path}
	if _, err := toml.DecodeFile(path, b); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if b.Remotes == nil {
		b.Remotes = map[string]Remote{}
	}
	return b, nil
}

// save writes the book with owner-only permissions, replacing the old file
// in one rename.
func (b *remoteBook) save() error {
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".remotes-*.toml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := toml.NewEncoder(tmp).Encode(b); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding remotes: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), b.path)
}

// put adds or replaces a remote. The first remote becomes active.
func (b *remoteBook) put(name string, r Remote) {
	b.Remotes[name] = r
	if len(b.Remotes) == 1 {
		b.Active = name
	}
}

func (b *remoteBook) remove(name string) error {
	if _, ok := b.Remotes[name]; !ok {
		return fmt.Errorf("%w %q", errNoRemote, name)
	}
	delete(b.Remotes, name)
	if b.Active == name {
		b.Active = ""
	}
	return nil
}

// use makes name active; "" clears the active remote.
func (b *remoteBook) use(name string) error {
	if _, ok := b.Remotes[name]; name != "" && !ok {
		return fmt.Errorf("%w %q", errNoRemote, name)
	}
	b.Active = name
	return nil
}

// lookup returns the named remote, or the active one when name is "".
func (b *remoteBook) lookup(name string) (string, Remote, error) {
	if name == "" {
		name = b.Active
	}
	if name == "" {
		return "", Remote{}, fmt.Errorf("no active remote; specify a name or run 'fr remote use <name>'")
	}
	r, ok := b.Remotes[name]
	if !ok {
		return "", Remote{}, fmt.Errorf("%w %q", errNoRemote, name)
	}
	return name, r, nil
}

func (b *remoteBook) names() []string {
	names := make([]string, 0, len(b.Remotes))
	for name := range b.Remotes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// currentRemote is the active remote, read once per process. The zero
// Remote means none is configured or the file is unreadable.
var currentRemote = sync.OnceValue(func() Remote {
	b, err := openRemoteBook()
	if err != nil || b.Active == "" {
		return Remote{}
	}
	return b.Remotes[b.Active]
})

// maskToken keeps the first eight characters of a secret.
func maskToken(tok string) string {
	const keep = 8
	if len(tok) <= keep {
		return tok
	}
	return tok[:keep] + strings.Repeat("*", len(tok)-keep)
}
