package domain

// Tool represents one installed toolchain known to the local tool index.
type Tool struct {
	// Name is the canonical tool name (e.g., "python", "go").
	Name InternedString `json:"name"`

	// Version is the installed version string (e.g., "3.7.9").
	Version InternedString `json:"version"`

	// Root is the absolute installation root. Binaries are expected under
	// Root/bin.
	Root InternedString `json:"root"`
}

// ToolIndex represents the persisted catalog of installed toolchains.
// It provides the lookup base for setup steps.
type ToolIndex struct {
	// Version is the index format version.
	// This allows for future schema migrations and backward compatibility.
	Version int `json:"version"`

	// Tools lists the installed toolchains in no particular order.
	Tools []Tool `json:"tools"`
}
