package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// QuickAction is a one-click canned question shown next to the input box.
type QuickAction struct {
	Label string `yaml:"label" json:"label"`
	Query string `yaml:"query" json:"query"`
}

// Profile describes the assistant persona: what it says first, how it is
// instructed, and which shortcuts it offers.
type Profile struct {
	Name                string        `yaml:"name" json:"name"`
	Greeting            string        `yaml:"greeting" json:"greeting"`
	SystemInstruction   string        `yaml:"system_instruction" json:"-"`
	AnalysisInstruction string        `yaml:"analysis_instruction" json:"-"`
	QuickActions        []QuickAction `yaml:"quick_actions" json:"quick_actions"`
}

func DefaultProfile() Profile {
	return Profile{
		Name:     "SLT-MOBITEL Assistant",
		Greeting: "Ayubowan! I'm now connected to the SLT-MOBITEL live knowledge base. \n\nYou can ask me questions about our services, or **upload a PDF/Bill** using the clip icon for me to analyze.",
		SystemInstruction: "You are the official customer support assistant for SLT-MOBITEL, Sri Lanka's national telecom provider. " +
			"Answer questions about broadband, fibre, PEO TV, mobile plans, billing and outages using up-to-date information from search. " +
			"When the user shares a document such as a bill, read it carefully and explain charges in plain language. " +
			"Be concise, friendly and use markdown lists where they help. If you are not sure, say so and suggest contacting 1212.",
		AnalysisInstruction: "You are a customer-experience analyst. Read the support conversation below and return a JSON object describing " +
			"the customer's sentiment (positive, neutral or negative) with a 0-100 score, a short summary, key topics, the customer's intent, " +
			"unresolved issues, recommendations for a human admin, and the criticality (low, medium or high).",
		QuickActions: []QuickAction{
			{Label: "Data Plans", Query: "What are your data plans?"},
			{Label: "Fibre Availability", Query: "How do I check fibre availability at my address?"},
			{Label: "Pay Bill", Query: "How can I pay my bill online?"},
			{Label: "Report Fault", Query: "My internet connection is down. What should I do?"},
		},
	}
}

// LoadProfile reads a YAML profile. Fields left empty fall back to the
// defaults, so a file only needs to override what differs. An empty path
// returns the default profile.
func LoadProfile(path string) (Profile, error) {
	p := DefaultProfile()
	if strings.TrimSpace(path) == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read profile: %w", err)
	}
	var fromFile Profile
	if err := yaml.Unmarshal(data, &fromFile); err != nil {
		return p, fmt.Errorf("parse profile %s: %w", path, err)
	}
	if fromFile.Name != "" {
		p.Name = fromFile.Name
	}
	if fromFile.Greeting != "" {
		p.Greeting = fromFile.Greeting
	}
	if fromFile.SystemInstruction != "" {
		p.SystemInstruction = fromFile.SystemInstruction
	}
	if fromFile.AnalysisInstruction != "" {
		p.AnalysisInstruction = fromFile.AnalysisInstruction
	}
	if fromFile.QuickActions != nil {
		p.QuickActions = fromFile.QuickActions
	}
	return p, nil
}
