package workflow

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/me/vmbroker/pkg/model"
)

// hclFile is the root of an HCL workflow description:
//
//	workflow "diamond" {
//	  task "A" { runtime = 10 }
//	  task "B" { parents = ["A"] }
//	}
type hclFile struct {
	Workflows []hclWorkflow `hcl:"workflow,block"`
}

type hclWorkflow struct {
	Name  string    `hcl:"name,label"`
	Tasks []hclTask `hcl:"task,block"`
}

type hclTask struct {
	ID      string   `hcl:"id,label"`
	Runtime *float64 `hcl:"runtime,optional"`
	Parents []string `hcl:"parents,optional"`
}

func parseHCL(data []byte, filename string) (*model.Workflow, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse HCL workflow: %w", diags)
	}

	var root hclFile
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("decode HCL workflow: %w", diags)
	}
	if len(root.Workflows) != 1 {
		return nil, fmt.Errorf("HCL workflow: expected exactly one workflow block, found %d", len(root.Workflows))
	}

	w := root.Workflows[0]
	wf := &model.Workflow{Name: w.Name, Nodes: make([]model.TaskNode, 0, len(w.Tasks))}
	for _, t := range w.Tasks {
		node := model.TaskNode{ID: t.ID, Parents: t.Parents}
		if t.Runtime != nil {
			node.Runtime = *t.Runtime
		}
		wf.Nodes = append(wf.Nodes, node)
	}
	return wf, nil
}
