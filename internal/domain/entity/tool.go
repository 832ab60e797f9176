// Package entity defines the core domain types for the tool-provider host:
// the Tool capability descriptor and the tagged error taxonomy shared by
// every layer of the application.
package entity

// Tool is an immutable descriptor of a single named capability offered by a
// provider. ParameterShape is an opaque JSON Schema document used only for
// validation; the registry never interprets it.
type Tool struct {
	Name           string
	Description    string
	ParameterShape map[string]any
}

// ProviderTool is a Tool tagged with the name of the provider that owns it,
// as returned by aggregate listing operations.
type ProviderTool struct {
	Tool
	Provider string
}
