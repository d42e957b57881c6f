// Copyright 2026 © The Ergon Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

// DiscoveryScaffoldYAML is the built-in discovery pipeline covering the six
// discovery phases. `ergon init` writes it out as a starting point. Step
// input overrides the inputs passed to the run, so the editable keys ship
// commented out; uncomment them to pin a value for every run.
const DiscoveryScaffoldYAML = `id: discovery
description: Full project discovery, from requirements to success criteria.
steps:
  - id: requirements
    task_type: requirements_gathering
    capability: requirements_analysis
    timeout: 2m
    # input:
    #   project_description: Describe the project to analyze here.
    #   stakeholder_input: []
    #   existing_documentation: []
  - id: stakeholders
    task_type: stakeholder_analysis
    capability: requirements_analysis
    timeout: 2m
  - id: scope
    task_type: scope_definition
    capability: requirements_analysis
    timeout: 1m
    # input:
    #   timeline: {}
    #   budget: {}
  - id: risks
    task_type: risk_identification
    capability: requirements_analysis
    timeout: 1m
  - id: constraints
    task_type: constraint_analysis
    capability: requirements_analysis
    timeout: 1m
  - id: criteria
    task_type: success_criteria
    capability: requirements_analysis
    timeout: 1m
`

// DiscoveryScaffold parses the built-in discovery pipeline.
func DiscoveryScaffold() *Workflow {
	wf, err := ParseYAML([]byte(DiscoveryScaffoldYAML))
	if err != nil {
		panic("workflow: built-in discovery scaffold is invalid: " + err.Error())
	}
	return wf
}
