package workflow

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/me/vmbroker/pkg/model"
)

// yamlWorkflow is the on-disk YAML (and JSON) layout:
//
//	name: diamond
//	tasks:
//	  - id: A
//	    runtime: 10
//	  - id: B
//	    parents: [A]
type yamlWorkflow struct {
	Name  string           `yaml:"name"`
	Tasks []model.TaskNode `yaml:"tasks"`
}

func parseYAML(data []byte) (*model.Workflow, error) {
	var doc yamlWorkflow
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse YAML workflow: %w", err)
	}
	return &model.Workflow{Name: doc.Name, Nodes: doc.Tasks}, nil
}
