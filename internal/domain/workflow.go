package domain

// Step is one node of a workflow graph.
type Step struct {
	ID             string  `json:"id"`
	WorkflowID     string  `json:"workflow_id"`
	Name           string  `json:"name"`
	Role           string  `json:"role"`
	EscalationRole *string `json:"escalation_role,omitempty"`
	Position       int     `json:"position"`
}

// Transition is a directed edge between two steps.
type Transition struct {
	FromStepID string `json:"from_step_id"`
	ToStepID   string `json:"to_step_id"`
}

// Workflow is a versioned, read-only step graph.
type Workflow struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Version     int          `json:"version"`
	Steps       []Step       `json:"steps"`
	Transitions []Transition `json:"transitions"`
}

// Step returns the step with id, if it belongs to the workflow.
func (w *Workflow) Step(id string) (*Step, bool) {
	if w == nil {
		return nil, false
	}
	for i := range w.Steps {
		if w.Steps[i].ID == id {
			return &w.Steps[i], true
		}
	}
	return nil, false
}

// CanTransition reports whether the workflow permits moving from one step to another.
// A workflow without transitions permits any move between its steps.
func (w *Workflow) CanTransition(from, to string) bool {
	if w == nil {
		return false
	}
	if len(w.Transitions) == 0 {
		return true
	}
	for _, t := range w.Transitions {
		if t.FromStepID == from && t.ToStepID == to {
			return true
		}
	}
	return false
}
