package core

// Capability identifies a class of work an agent can take on. The pool uses
// capabilities to route tasks to suitable agents.
type Capability string

const (
	CapabilityCodeGeneration       Capability = "code_generation"
	CapabilityRequirementsAnalysis Capability = "requirements_analysis"
	CapabilityProjectPlanning      Capability = "project_planning"
	CapabilityTesting              Capability = "testing"
	CapabilityDocumentation        Capability = "documentation"
	CapabilityDeployment           Capability = "deployment"
	CapabilityMonitoring           Capability = "monitoring"
	CapabilityResearch             Capability = "research"
	CapabilityDesign               Capability = "design"
	CapabilityCommunication        Capability = "communication"
)

// HasCapability reports whether cap is contained in caps.
func HasCapability(caps []Capability, cap Capability) bool {
	for _, c := range caps {
		if c == cap {
			return true
		}
	}
	return false
}
