// Package planner turns loaded workflows and a push event into run plans:
// trigger matching, matrix expansion, and instance graph construction.
package planner

import (
	"fmt"
	"slices"

	"go.trai.ch/gantry/internal/core/domain"
	"go.trai.ch/gantry/internal/core/ports"
	"go.trai.ch/zerr"
)

// Planner builds executable plans from workflow definitions.
type Planner struct {
	logger ports.Logger
}

// NewPlanner creates a new Planner.
func NewPlanner(logger ports.Logger) *Planner {
	return &Planner{logger: logger}
}

// Plan is the executable shape of one triggered workflow: every job expanded
// into its matrix instances, wired into a validated dependency graph.
type Plan struct {
	Workflow domain.Workflow
	Event    domain.PushEvent
	Graph    *domain.Graph
}

// Instances returns the planned job instances in execution order.
func (p *Plan) Instances() []domain.JobInstance {
	out := make([]domain.JobInstance, 0, p.Graph.Count())
	for inst := range p.Graph.Walk() {
		out = append(out, inst)
	}
	return out
}

// Plan builds the run plan for one workflow against a push event. The second
// return reports whether the workflow's trigger matched; an unmatched
// workflow yields no plan and no error.
func (p *Planner) Plan(wf domain.Workflow, ev domain.PushEvent) (*Plan, bool, error) {
	if !wf.On.MatchesPush(ev) {
		p.logger.Debug(fmt.Sprintf("workflow %s does not match %s", wf.Name, ev.Ref))
		return nil, false, nil
	}

	graph, err := buildGraph(wf)
	if err != nil {
		return nil, false, zerr.With(err, "workflow", wf.Name.String())
	}

	return &Plan{Workflow: wf, Event: ev, Graph: graph}, true, nil
}

// buildGraph expands every job into its matrix instances and connects the
// needs edges. A needs edge fans out: each instance depends on every
// instance of the needed job.
func buildGraph(wf domain.Workflow) (*domain.Graph, error) {
	jobIDs := make([]string, 0, len(wf.Jobs))
	for id := range wf.Jobs {
		jobIDs = append(jobIDs, id)
	}
	slices.Sort(jobIDs)

	selections := make(map[string][]domain.Selection, len(jobIDs))
	instanceKeys := make(map[string][]domain.InternedString, len(jobIDs))
	for _, id := range jobIDs {
		sels := domain.ExpandMatrix(wf.Jobs[id].Strategy.Matrix)
		selections[id] = sels
		keys := make([]domain.InternedString, len(sels))
		for i, sel := range sels {
			keys[i] = domain.InstanceKey(id, sel)
		}
		instanceKeys[id] = keys
	}

	graph := domain.NewGraph()
	for _, id := range jobIDs {
		job := wf.Jobs[id]
		for i, sel := range selections[id] {
			var needs []domain.InternedString
			for _, need := range job.Needs {
				needs = append(needs, instanceKeys[need.String()]...)
			}
			inst := domain.JobInstance{
				Key:       instanceKeys[id][i],
				JobID:     job.ID,
				Job:       job,
				Selection: sel,
				Needs:     needs,
			}
			if err := graph.Add(&inst); err != nil {
				return nil, err
			}
		}
	}

	if err := graph.Validate(); err != nil {
		return nil, err
	}
	return graph, nil
}
