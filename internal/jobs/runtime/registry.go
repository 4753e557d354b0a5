package runtime

// Registry maps a job type to its pipeline. The mapping is a closed
// enumeration populated once at startup, never extended at runtime.
type Registry struct {
	pipelines map[string]Pipeline
}

func NewRegistry() *Registry {
	return &Registry{pipelines: make(map[string]Pipeline)}
}

func (r *Registry) Register(p Pipeline) {
	r.pipelines[p.Type] = p
}

func (r *Registry) Get(jobType string) (Pipeline, bool) {
	p, ok := r.pipelines[jobType]
	return p, ok
}

func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.pipelines))
	for t := range r.pipelines {
		out = append(out, t)
	}
	return out
}
