package jobs

import "fmt"

// Message kinds carried in a job's template data.
const (
	KindConfirmation = "confirmation"
	KindReminder     = "reminder"
)

// NewTemplateData builds the template data stored on a job. Consumers that
// schedule jobs go through this so Compose always finds the keys it renders.
func NewTemplateData(kind, startTime, doctorName string) map[string]any {
	return map[string]any{
		"kind":        kind,
		"start_time":  startTime,
		"doctor_name": doctorName,
	}
}

// Compose renders the subject and body for a job from its template data.
// Unknown kinds fall back to the reminder wording.
func Compose(job Job) (subject string, body string) {
	kind, _ := job.TemplateData["kind"].(string)
	startTime, _ := job.TemplateData["start_time"].(string)
	doctorName, _ := job.TemplateData["doctor_name"].(string)
	if doctorName == "" {
		doctorName = "your doctor"
	}

	if kind == KindConfirmation {
		subject = "Your appointment is booked"
		body = fmt.Sprintf("Your appointment with %s is confirmed for %s.", doctorName, startTime)
		return subject, body
	}

	subject = "Appointment reminder"
	body = fmt.Sprintf("This is a reminder of your appointment with %s at %s.", doctorName, startTime)
	return subject, body
}
