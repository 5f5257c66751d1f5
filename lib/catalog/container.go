package catalog

// Container is an immutable catalog entry.
type Container struct {
	Name       string
	ImageName  string
	ImageTag   string
	Path       string // build context directory
	Dockerfile string // relative to Path
	BuildArgs  map[string]string

	// NamedVolumes maps a mount point inside the container to a volume name
	NamedVolumes map[string]string

	// ProvidedVolume is the volume this container's image populates, if any
	ProvidedVolume string

	// System containers survive profile switches and are rebuilt with the profile
	System bool

	// From names the catalog container whose image this one is built FROM
	From string

	// DependsOn names the containers that must run alongside this one
	DependsOn []string
}

// Image returns the image reference name:tag.
func (c *Container) Image() string {
	return c.ImageName + ":" + c.ImageTag
}

// ProvidesVolume reports whether the container only exists to fill a volume.
func (c *Container) ProvidesVolume() bool {
	return c.ProvidedVolume != ""
}

func (c *Container) String() string {
	return c.Name
}

// Options are the per-profile settings for a container.
type Options struct {
	DefaultBoot bool `json:"default_boot"`
	InProfile   bool `json:"in_profile"`
}
