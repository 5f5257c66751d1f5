// Package profiles stores the named sets of containers a user can switch
// between and applies the active one to the catalog.
package profiles

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/ghodss/yaml"

	"github.com/onkernel/bay/lib/catalog"
)

const fileExt = ".yaml"

// Profile is one profile file. The user profile only names a parent.
type Profile struct {
	Name        string                     `json:"-"`
	Path        string                     `json:"-"`
	Description string                     `json:"description,omitempty"`
	Parent      string                     `json:"parent,omitempty"`
	Containers  map[string]catalog.Options `json:"containers,omitempty"`
}

// Load reads the profile at path.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	p := &Profile{}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidProfile, path, err)
	}
	p.Path = path
	p.Name = strings.TrimSuffix(filepath.Base(path), fileExt)
	return p, nil
}

// Save writes the profile back to its path.
func (p *Profile) Save() error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(p.Path), 0755); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}
	if err := os.WriteFile(p.Path, data, 0644); err != nil {
		return fmt.Errorf("write profile: %w", err)
	}
	return nil
}

// Store finds profiles in a directory and the user's selection in a file.
type Store struct {
	dir      string
	userPath string
}

// NewStore creates a store.
func NewStore(dir, userPath string) *Store {
	return &Store{dir: dir, userPath: userPath}
}

// List returns the loadable profiles ordered by name, and the names of the
// ones that failed to load.
func (s *Store) List() ([]*Profile, []string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("list profiles: %w", err)
	}

	var profiles []*Profile
	var corrupted []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), fileExt) {
			continue
		}
		p, err := Load(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			corrupted = append(corrupted, strings.TrimSuffix(entry.Name(), fileExt))
			continue
		}
		profiles = append(profiles, p)
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Name < profiles[j].Name })
	sort.Strings(corrupted)
	return profiles, corrupted, nil
}

// Get loads the profile called name.
func (s *Store) Get(name string) (*Profile, error) {
	path, err := securejoin.SecureJoin(s.dir, name+fileExt)
	if err != nil {
		return nil, fmt.Errorf("resolve profile %s: %w", name, err)
	}
	p, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return p, err
}

// User loads the user profile. A missing file gives an empty profile.
func (s *Store) User() (*Profile, error) {
	p, err := Load(s.userPath)
	if errors.Is(err, os.ErrNotExist) {
		return &Profile{Name: "user", Path: s.userPath}, nil
	}
	return p, err
}

// Stack returns the active profiles, user profile first, then each parent.
func (s *Store) Stack() ([]*Profile, error) {
	user, err := s.User()
	if err != nil {
		return nil, err
	}

	stack := []*Profile{user}
	seen := map[string]bool{}
	for parent := user.Parent; parent != ""; {
		if seen[parent] {
			return nil, fmt.Errorf("%w: %s", ErrParentCycle, parent)
		}
		seen[parent] = true

		p, err := s.Get(parent)
		if err != nil {
			return nil, err
		}
		stack = append(stack, p)
		parent = p.Parent
	}
	return stack, nil
}

// Current returns the selected profile, or nil when none is selected.
func (s *Store) Current() (*Profile, error) {
	stack, err := s.Stack()
	if err != nil {
		return nil, err
	}
	if len(stack) < 2 {
		return nil, nil
	}
	return stack[1], nil
}

// Switch selects the profile called name.
func (s *Store) Switch(name string) error {
	if _, err := s.Get(name); err != nil {
		return err
	}
	user, err := s.User()
	if err != nil {
		return err
	}
	user.Parent = name
	return user.Save()
}

// Apply sets catalog options from stack, letting profiles nearer the user
// override their parents. It returns the container names no catalog entry
// matches.
func Apply(cat *catalog.Catalog, stack []*Profile) []string {
	merged := make(map[string]catalog.Options)
	for i := len(stack) - 1; i >= 0; i-- {
		for name, opts := range stack[i].Containers {
			merged[name] = opts
		}
	}

	var unknown []string
	names := make([]string, 0, len(merged))
	for name := range merged {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := cat.SetOptions(name, merged[name]); err != nil {
			unknown = append(unknown, name)
		}
	}
	return unknown
}
