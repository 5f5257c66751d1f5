// Package formation models the set of container instances on a host and
// moves a host from its current formation to a target one.
package formation

import (
	"fmt"
	"sort"

	"github.com/samber/lo"

	"github.com/onkernel/bay/lib/catalog"
)

// Instance is one runtime container created from a catalog container.
type Instance struct {
	Name      string
	ID        string // empty until the instance exists on a host
	Container *catalog.Container
}

// Volumes returns the named volumes the instance mounts.
func (i *Instance) Volumes() []string {
	return lo.Uniq(lo.Values(i.Container.NamedVolumes))
}

func (i *Instance) String() string {
	return i.Name
}

// Formation is a set of instances keyed by name.
type Formation struct {
	instances map[string]*Instance
}

// New creates an empty formation.
func New() *Formation {
	return &Formation{instances: make(map[string]*Instance)}
}

// InstanceName is the runtime name used for con.
func InstanceName(con *catalog.Container) string {
	return "bay-" + con.Name
}

// Add adds inst to the formation.
func (f *Formation) Add(inst *Instance) error {
	if _, ok := f.instances[inst.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateInstance, inst.Name)
	}
	f.instances[inst.Name] = inst
	return nil
}

// AddContainer adds a not-yet-created instance of con.
func (f *Formation) AddContainer(con *catalog.Container) (*Instance, error) {
	inst := &Instance{Name: InstanceName(con), Container: con}
	if err := f.Add(inst); err != nil {
		return nil, err
	}
	return inst, nil
}

// Get returns the instance called name, or nil.
func (f *Formation) Get(name string) *Instance {
	return f.instances[name]
}

// Instances returns the instances ordered by name.
func (f *Formation) Instances() []*Instance {
	out := lo.Values(f.instances)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ForContainer returns the instances of con.
func (f *Formation) ForContainer(con *catalog.Container) []*Instance {
	return lo.Filter(f.Instances(), func(inst *Instance, _ int) bool {
		return inst.Container == con
	})
}

// InstancesUsingVolume returns the instances that mount volume.
func (f *Formation) InstancesUsingVolume(volume string) []*Instance {
	return lo.Filter(f.Instances(), func(inst *Instance, _ int) bool {
		return lo.Contains(inst.Volumes(), volume)
	})
}

// RemoveInstances drops instances from the formation. Unknown instances are
// ignored.
func (f *Formation) RemoveInstances(instances []*Instance) {
	for _, inst := range instances {
		delete(f.instances, inst.Name)
	}
}

// Clone returns a copy that shares the instances but not the set.
func (f *Formation) Clone() *Formation {
	c := New()
	for name, inst := range f.instances {
		c.instances[name] = inst
	}
	return c
}

// Len returns the number of instances.
func (f *Formation) Len() int {
	return len(f.instances)
}
