package catalog

import (
	"github.com/ajitpratap0/tap-nomad/pkg/taperrors"
)

// Registry is a read-only lookup from stream name to definition, populated
// once at construction. Iteration order is the fixed discovery order, which
// also fixes run-to-run stream execution order.
type Registry struct {
	order  []string
	byName map[string]*StreamDefinition
}

// NewRegistry builds a registry over the given definitions, preserving their
// order as the discovery order.
func NewRegistry(defs ...*StreamDefinition) *Registry {
	r := &Registry{
		order:  make([]string, 0, len(defs)),
		byName: make(map[string]*StreamDefinition, len(defs)),
	}
	for _, def := range defs {
		if _, exists := r.byName[def.Name]; exists {
			continue
		}
		r.order = append(r.order, def.Name)
		r.byName[def.Name] = def
	}
	return r
}

// Definition returns the definition for the named stream.
func (r *Registry) Definition(name string) (*StreamDefinition, error) {
	def, ok := r.byName[name]
	if !ok {
		return nil, taperrors.Newf(taperrors.ErrorTypeUnknownStream, "unknown stream %q", name).
			WithDetail("stream", name)
	}
	return def, nil
}

// Definitions returns all definitions in discovery order.
func (r *Registry) Definitions() []*StreamDefinition {
	defs := make([]*StreamDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.byName[name])
	}
	return defs
}

// Len returns the number of registered streams.
func (r *Registry) Len() int {
	return len(r.order)
}

// Default returns the registry of every stream the tap can extract from a
// Nomad-style scheduler API. Incremental streams replicate on ModifyIndex,
// the monotonically increasing raft index the scheduler stamps on every
// object mutation.
func Default() *Registry {
	return NewRegistry(jobsStream(), allocationsStream(), nodesStream(), deploymentsStream())
}

func jobsStream() *StreamDefinition {
	return &StreamDefinition{
		Name: "jobs",
		Path: "/v1/jobs",
		Schema: []Field{
			{Name: "ID", Type: FieldTypeString, Required: true},
			{Name: "ParentID", Type: FieldTypeString},
			{Name: "Name", Type: FieldTypeString},
			{Name: "Namespace", Type: FieldTypeString},
			{Name: "Type", Type: FieldTypeString},
			{Name: "Priority", Type: FieldTypeInteger},
			{Name: "Status", Type: FieldTypeString},
			{Name: "StatusDescription", Type: FieldTypeString},
			{Name: "Stop", Type: FieldTypeBool},
			{Name: "JobSummary", Type: FieldTypeObject},
			{Name: "SubmitTime", Type: FieldTypeInteger},
			{Name: "CreateIndex", Type: FieldTypeInteger},
			{Name: "ModifyIndex", Type: FieldTypeInteger, Required: true},
		},
		PrimaryKeys:       []string{"ID"},
		ReplicationMethod: ReplicationIncremental,
		ReplicationKey:    "ModifyIndex",
	}
}

func allocationsStream() *StreamDefinition {
	return &StreamDefinition{
		Name: "allocations",
		Path: "/v1/allocations",
		Schema: []Field{
			{Name: "ID", Type: FieldTypeString, Required: true},
			{Name: "EvalID", Type: FieldTypeString},
			{Name: "Name", Type: FieldTypeString},
			{Name: "Namespace", Type: FieldTypeString},
			{Name: "NodeID", Type: FieldTypeString},
			{Name: "NodeName", Type: FieldTypeString},
			{Name: "JobID", Type: FieldTypeString},
			{Name: "JobType", Type: FieldTypeString},
			{Name: "TaskGroup", Type: FieldTypeString},
			{Name: "DesiredStatus", Type: FieldTypeString},
			{Name: "DesiredDescription", Type: FieldTypeString},
			{Name: "ClientStatus", Type: FieldTypeString},
			{Name: "ClientDescription", Type: FieldTypeString},
			{Name: "FollowupEvalID", Type: FieldTypeString},
			{Name: "CreateTime", Type: FieldTypeInteger},
			{Name: "ModifyTime", Type: FieldTypeInteger},
			{Name: "CreateIndex", Type: FieldTypeInteger},
			{Name: "ModifyIndex", Type: FieldTypeInteger, Required: true},
		},
		PrimaryKeys:       []string{"ID"},
		ReplicationMethod: ReplicationIncremental,
		ReplicationKey:    "ModifyIndex",
	}
}

func nodesStream() *StreamDefinition {
	return &StreamDefinition{
		Name: "nodes",
		Path: "/v1/nodes",
		Schema: []Field{
			{Name: "ID", Type: FieldTypeString, Required: true},
			{Name: "Name", Type: FieldTypeString},
			{Name: "Address", Type: FieldTypeString},
			{Name: "Datacenter", Type: FieldTypeString},
			{Name: "NodeClass", Type: FieldTypeString},
			{Name: "NodePool", Type: FieldTypeString},
			{Name: "Version", Type: FieldTypeString},
			{Name: "Drain", Type: FieldTypeBool},
			{Name: "SchedulingEligibility", Type: FieldTypeString},
			{Name: "Status", Type: FieldTypeString},
			{Name: "StatusDescription", Type: FieldTypeString},
			{Name: "CreateIndex", Type: FieldTypeInteger},
			{Name: "ModifyIndex", Type: FieldTypeInteger},
		},
		PrimaryKeys:       []string{"ID"},
		ReplicationMethod: ReplicationFullTable,
	}
}

func deploymentsStream() *StreamDefinition {
	return &StreamDefinition{
		Name: "deployments",
		Path: "/v1/deployments",
		Schema: []Field{
			{Name: "ID", Type: FieldTypeString, Required: true},
			{Name: "JobID", Type: FieldTypeString},
			{Name: "JobVersion", Type: FieldTypeInteger},
			{Name: "Namespace", Type: FieldTypeString},
			{Name: "Status", Type: FieldTypeString},
			{Name: "StatusDescription", Type: FieldTypeString},
			{Name: "TaskGroups", Type: FieldTypeObject},
			{Name: "IsMultiregion", Type: FieldTypeBool},
			{Name: "CreateIndex", Type: FieldTypeInteger},
			{Name: "ModifyIndex", Type: FieldTypeInteger, Required: true},
		},
		PrimaryKeys:       []string{"ID"},
		ReplicationMethod: ReplicationIncremental,
		ReplicationKey:    "ModifyIndex",
	}
}
