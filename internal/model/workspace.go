package model

// Workspace. A tenant-isolated business unit,
// e.g. one property management account.
type Workspace struct {
	// Workspace identifier
	Id string
	// Display name
	Name string
	// Workspace-type tag, e.g. "hostel", "apartment"
	Type string
	// Logo image URL, if any
	LogoURL string
	// Administratively owning end-user
	OwnerId string
	// Workspace settings
	Settings WorkspaceSettings
	// Whether the workspace is active
	Active bool
}

// WorkspaceSettings block.
type WorkspaceSettings struct {
	// BCP-47 locale tag
	Locale string
	// ISO-4217 currency code
	Currency string
	// Date presentation format
	DateFormat string
	// Feature toggles by name
	Features map[string]bool
}
