package handlers

import "net/http"

// Component describes one mirrorable case package for UI pickers.
type Component struct {
	Name              string   `json:"name"`
	Description       string   `json:"description"`
	TypicalSize       string   `json:"typical_size"`
	Versions          []string `json:"versions"`
	Architecture      []string `json:"architecture"`
	OpenShiftVersions []string `json:"openshift_versions"`
}

var ocpVersions = []string{"4.14", "4.15", "4.16", "4.17", "4.18", "4.19", "4.20"}

// builtinComponents is the static catalog served when no live source is
// configured.
var builtinComponents = []Component{
	{
		Name:              "ibm-integration-platform-navigator",
		Description:       "IBM Cloud Pak for Integration - Platform Navigator",
		TypicalSize:       "~22GB",
		Versions:          []string{"8.3.0", "8.2.0", "8.1.0", "7.3.2"},
		Architecture:      []string{"amd64", "s390x", "ppc64le"},
		OpenShiftVersions: ocpVersions,
	},
	{
		Name:              "ibm-apiconnect",
		Description:       "IBM API Connect",
		TypicalSize:       "~38GB",
		Versions:          []string{"10.0.10.0", "10.0.9.0", "10.0.8.0", "10.0.7.0"},
		Architecture:      []string{"amd64", "s390x"},
		OpenShiftVersions: ocpVersions,
	},
	{
		Name:              "ibm-mq",
		Description:       "IBM MQ Advanced",
		TypicalSize:       "~14GB",
		Versions:          []string{"9.4.0", "9.3.5", "9.3.4", "9.3.3"},
		Architecture:      []string{"amd64", "s390x", "ppc64le"},
		OpenShiftVersions: ocpVersions,
	},
	{
		Name:              "ibm-eventstreams",
		Description:       "IBM Event Streams (Apache Kafka)",
		TypicalSize:       "~20GB",
		Versions:          []string{"11.5.0", "11.4.0", "11.3.2", "11.3.1"},
		Architecture:      []string{"amd64", "s390x"},
		OpenShiftVersions: ocpVersions,
	},
	{
		Name:              "ibm-appconnect",
		Description:       "IBM App Connect Enterprise",
		TypicalSize:       "~16GB",
		Versions:          []string{"13.0.1", "13.0.0", "12.0.11.0", "12.0.10.0"},
		Architecture:      []string{"amd64", "s390x"},
		OpenShiftVersions: ocpVersions,
	},
	{
		Name:              "ibm-datapower-operator",
		Description:       "IBM DataPower Gateway",
		TypicalSize:       "~9GB",
		Versions:          []string{"1.12.0", "1.11.0", "1.10.3", "1.10.2"},
		Architecture:      []string{"amd64", "s390x"},
		OpenShiftVersions: ocpVersions,
	},
}

// ListComponents serves the static component catalog.
func (h *Handlers) ListComponents(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"components": builtinComponents,
		"source":     "builtin",
	})
}
