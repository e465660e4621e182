package view

import "kycflow/internal/kyc/models"

var statusLabels = map[models.Status]string{
	models.StatusPending:    "Waiting",
	models.StatusInProgress: "Processing",
	models.StatusCompleted:  "Completed",
	models.StatusFailed:     "Failed",
}

// StatusLabel returns the display text for a lifecycle state.
func StatusLabel(status models.Status) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return string(status)
}
