package catalog

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/distribution/reference"
	"github.com/ghodss/yaml"
)

// ManifestFile is the optional per-container settings file
const ManifestFile = "bay.yaml"

// LoadOptions controls how container directories become catalog entries.
type LoadOptions struct {
	// ImagePrefix is prepended to the directory name to form the image name
	ImagePrefix string
	// DefaultTag is used when the manifest names no tag
	DefaultTag string
}

type manifest struct {
	Image          string            `json:"image"`
	Tag            string            `json:"tag"`
	Dockerfile     string            `json:"dockerfile"`
	Depends        []string          `json:"depends"`
	Volumes        map[string]string `json:"volumes"`
	ProvidesVolume string            `json:"provides-volume"`
	System         bool              `json:"system"`
	BuildArgs      map[string]string `json:"build-args"`
}

// Load reads every sub-directory of dir holding a Dockerfile as a container.
// A container's build parent is the catalog container whose image its
// Dockerfile's final FROM line names.
func Load(dir string, opts LoadOptions) (*Catalog, error) {
	if opts.DefaultTag == "" {
		opts.DefaultTag = "latest"
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read catalog dir: %w", err)
	}

	var containers []*Container
	froms := make(map[string]string)
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		con, from, err := loadContainer(dir, entry.Name(), opts)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load container %s: %w", entry.Name(), err)
		}
		containers = append(containers, con)
		froms[con.Name] = from
	}

	byImage := make(map[string]string, len(containers))
	for _, con := range containers {
		name, err := repositoryName(con.ImageName)
		if err != nil {
			return nil, fmt.Errorf("%w: %s image %q: %v", ErrInvalidContainer, con.Name, con.ImageName, err)
		}
		byImage[name] = con.Name
	}

	for _, con := range containers {
		from := froms[con.Name]
		if from == "" || from == "scratch" {
			continue
		}
		name, err := repositoryName(from)
		if err != nil {
			// FROM may reference a build stage or an ARG; neither is a catalog parent
			continue
		}
		if parent, ok := byImage[name]; ok && parent != con.Name {
			con.From = parent
		}
	}

	return New(containers)
}

func loadContainer(root, name string, opts LoadOptions) (*Container, string, error) {
	path, err := securejoin.SecureJoin(root, name)
	if err != nil {
		return nil, "", err
	}

	var m manifest
	data, err := os.ReadFile(filepath.Join(path, ManifestFile))
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, "", fmt.Errorf("%w: parse %s: %v", ErrInvalidContainer, ManifestFile, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, "", fmt.Errorf("read %s: %w", ManifestFile, err)
	}

	if m.Dockerfile == "" {
		m.Dockerfile = "Dockerfile"
	}
	dockerfile, err := securejoin.SecureJoin(path, m.Dockerfile)
	if err != nil {
		return nil, "", err
	}
	from, err := finalFrom(dockerfile)
	if err != nil {
		return nil, "", err
	}

	con := &Container{
		Name:           name,
		ImageName:      m.Image,
		ImageTag:       m.Tag,
		Path:           path,
		Dockerfile:     m.Dockerfile,
		BuildArgs:      m.BuildArgs,
		NamedVolumes:   m.Volumes,
		ProvidedVolume: m.ProvidesVolume,
		System:         m.System,
		DependsOn:      m.Depends,
	}
	if con.ImageName == "" {
		con.ImageName = opts.ImagePrefix + name
	}
	if con.ImageTag == "" {
		con.ImageTag = opts.DefaultTag
	}
	if con.NamedVolumes == nil {
		con.NamedVolumes = map[string]string{}
	}
	return con, from, nil
}

// finalFrom returns the image of the last FROM instruction in a Dockerfile.
func finalFrom(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var from string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 || !strings.EqualFold(fields[0], "FROM") {
			continue
		}
		// skip flags such as --platform=...
		for _, f := range fields[1:] {
			if !strings.HasPrefix(f, "--") {
				from = f
				break
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read dockerfile: %w", err)
	}
	return from, nil
}

func repositoryName(image string) (string, error) {
	named, err := reference.ParseNormalizedNamed(image)
	if err != nil {
		return "", err
	}
	return named.Name(), nil
}
