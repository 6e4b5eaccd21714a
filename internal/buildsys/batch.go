package buildsys

// BatchPlan is the synthesized multi-target build the driver hands to a
// single toolchain invocation when several native targets in the same
// workspace share overlay libraries (spec.md §4.6 "Batch optimization").
type BatchPlan struct {
	Order             []string // target names, dependency-ordered
	LibSearchPath     []string
	IncludeSearchPath []string
}

// PlanBatch orders targets that depend on each other's manifest Path
// dependencies (a target may declare another target's directory as a
// Path dependency, e.g. a shared local library) and attaches the overlay
// + global-cache search paths every target in the batch should see.
func PlanBatch(targets []Target, libSearchPath, includeSearchPath []string) (*BatchPlan, error) {
	dirToName := make(map[string]string, len(targets))
	for _, t := range targets {
		if t.Manifest != nil {
			dirToName[t.Manifest.Dir] = t.Name
		}
	}

	nodes := make([]Node, 0, len(targets))
	for _, t := range targets {
		var requires []string
		if t.Manifest != nil {
			for _, dep := range t.Manifest.Dependencies {
				if !dep.IsPath() {
					continue
				}
				if siblingName, ok := dirToName[t.Manifest.ResolvePathDependency(dep)]; ok && siblingName != t.Name {
					requires = append(requires, siblingName)
				}
			}
		}
		nodes = append(nodes, Node{Name: t.Name, Requires: requires})
	}

	order, err := Order(nodes)
	if err != nil {
		return nil, err
	}
	return &BatchPlan{
		Order:             order,
		LibSearchPath:     libSearchPath,
		IncludeSearchPath: includeSearchPath,
	}, nil
}
