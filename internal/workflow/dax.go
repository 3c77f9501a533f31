package workflow

import (
	"bytes"
	"encoding/xml"
	"fmt"

	"github.com/me/vmbroker/pkg/model"
)

// daxDocument mirrors the subset of the Pegasus DAX schema the broker
// needs: jobs with their runtimes and child/parent dependency records.
type daxDocument struct {
	XMLName  xml.Name   `xml:"adag"`
	Name     string     `xml:"name,attr"`
	Jobs     []daxJob   `xml:"job"`
	Children []daxChild `xml:"child"`
}

type daxJob struct {
	ID      string  `xml:"id,attr"`
	Runtime float64 `xml:"runtime,attr"`
}

type daxChild struct {
	Ref     string   `xml:"ref,attr"`
	Parents []daxRef `xml:"parent"`
}

type daxRef struct {
	Ref string `xml:"ref,attr"`
}

func parseDAX(data []byte) (*model.Workflow, error) {
	var doc daxDocument
	dec := xml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse DAX workflow: %w", err)
	}

	wf := &model.Workflow{Name: doc.Name}
	index := make(map[string]int, len(doc.Jobs))
	for _, j := range doc.Jobs {
		index[j.ID] = len(wf.Nodes)
		wf.Nodes = append(wf.Nodes, model.TaskNode{ID: j.ID, Runtime: j.Runtime})
	}

	// A job may appear in several <child> records; their parents merge.
	for _, c := range doc.Children {
		i, ok := index[c.Ref]
		if !ok {
			return nil, fmt.Errorf("DAX child: %w", &model.UnknownNodeError{ID: c.Ref})
		}
		for _, p := range c.Parents {
			wf.Nodes[i].Parents = append(wf.Nodes[i].Parents, p.Ref)
		}
	}
	return wf, nil
}
