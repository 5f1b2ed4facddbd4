// Package app provides the core application service for Wails bindings.
package app

import "go.detai.dev/companion/internal/types"

// Event names for frontend communication.
const (
	EventSnapStatus        = "snap-status"
	EventPluginStatus      = "plugin-status"
	EventAccessibilityPerm = "accessibility-permission"
)

// PluginStatus is emitted after every install, reinstall or uninstall.
type PluginStatus struct {
	Path      string `json:"path"`
	Installed bool   `json:"installed"`
	Outcome   string `json:"outcome,omitempty"`
	Error     string `json:"error,omitempty"`
}

func pluginStatus(path string, res types.InstallResult, err error) PluginStatus {
	st := PluginStatus{Path: path}
	if err != nil {
		st.Error = err.Error()
		return st
	}
	st.Installed = true
	st.Outcome = res.Outcome.String()
	return st
}
