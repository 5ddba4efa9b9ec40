package particles

import (
	"fmt"
	"regexp"
)

// FileSet names the group and particle files of one halo-finder output.
// ParticleTypes and ParticleTypesUnbound may be empty.
type FileSet struct {
	Groups               string
	Particles            string
	ParticlesUnbound     string
	ParticleTypes        string
	ParticleTypesUnbound string
}

var propertiesPattern = regexp.MustCompile(`^(.*)\.properties(\.\d+)?$`)

// FileSetFromCatalogue derives the sibling file names from a properties
// path: "out/halo_0036.properties.0" gives "out/halo_0036.catalog_groups.0"
// and so on.
func FileSetFromCatalogue(path string) (FileSet, error) {
	m := propertiesPattern.FindStringSubmatch(path)
	if m == nil {
		return FileSet{}, fmt.Errorf("%s: %w", path, ErrNotProperties)
	}
	base, part := m[1], m[2]
	return FileSet{
		Groups:               base + ".catalog_groups" + part,
		Particles:            base + ".catalog_particles" + part,
		ParticlesUnbound:     base + ".catalog_particles.unbound" + part,
		ParticleTypes:        base + ".catalog_parttypes" + part,
		ParticleTypesUnbound: base + ".catalog_parttypes.unbound" + part,
	}, nil
}
