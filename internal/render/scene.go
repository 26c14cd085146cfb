package render

// Scene is the set of meshes handed to the renderer. Meshes are added once
// at construction; nothing is removed while the simulation runs.
type Scene struct {
	meshes []*InstancedMesh
	byName map[string]*InstancedMesh
}

func NewScene() *Scene {
	return &Scene{byName: make(map[string]*InstancedMesh)}
}

// Add appends meshes in draw order. Adding a mesh twice is ignored.
func (s *Scene) Add(meshes ...*InstancedMesh) {
	for _, m := range meshes {
		if m == nil {
			continue
		}
		if prev, ok := s.byName[m.Name()]; ok && prev == m {
			continue
		}
		s.meshes = append(s.meshes, m)
		s.byName[m.Name()] = m
	}
}

func (s *Scene) Meshes() []*InstancedMesh { return s.meshes }

func (s *Scene) Mesh(name string) (*InstancedMesh, bool) {
	m, ok := s.byName[name]
	return m, ok
}

// Instances returns the total instance count over every mesh.
func (s *Scene) Instances() int {
	n := 0
	for _, m := range s.meshes {
		n += m.Count()
	}
	return n
}
