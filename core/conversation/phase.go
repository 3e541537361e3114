package conversation

import (
	"fmt"
	"strings"
)

// Phase identifies the step of the dialogue a user is in. The numeric
// values are persisted and must never be renumbered.
type Phase int

const (
	PhaseIdle Phase = iota + 1
	PhaseRegistering
	PhaseConfiguringSite
	PhaseConfiguringTransport
	PhaseUploadingTemplate
	PhaseCreatingContent
	PhaseUploadingImage
	PhaseEditingContent
	PhaseManagingCategories
	PhaseManagingFeatured
	PhaseConfirmingPublish
	PhaseConfiguringCustomPlaceholder
)

var phaseNames = map[Phase]string{
	PhaseIdle:                         "idle",
	PhaseRegistering:                  "registering",
	PhaseConfiguringSite:              "configuring_site",
	PhaseConfiguringTransport:         "configuring_transport",
	PhaseUploadingTemplate:            "uploading_template",
	PhaseCreatingContent:              "creating_content",
	PhaseUploadingImage:               "uploading_image",
	PhaseEditingContent:               "editing_content",
	PhaseManagingCategories:           "managing_categories",
	PhaseManagingFeatured:             "managing_featured",
	PhaseConfirmingPublish:            "confirming_publish",
	PhaseConfiguringCustomPlaceholder: "configuring_custom_placeholder",
}

// Phases lists every phase in numeric order.
func Phases() []Phase {
	out := make([]Phase, 0, len(phaseNames))
	for p := PhaseIdle; p <= PhaseConfiguringCustomPlaceholder; p++ {
		out = append(out, p)
	}
	return out
}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	_, ok := phaseNames[p]
	return ok
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// ParsePhase maps a phase name back to its value.
func ParsePhase(name string) (Phase, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for p, n := range phaseNames {
		if n == key {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown phase %q", name)
}
