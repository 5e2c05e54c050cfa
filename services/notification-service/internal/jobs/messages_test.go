package jobs

import (
	"strings"
	"testing"
)

func TestCompose(t *testing.T) {
	job := Job{TemplateData: map[string]any{
		"kind":        KindConfirmation,
		"start_time":  "2026-09-14T10:00:00Z",
		"doctor_name": "Dr. Osei",
	}}
	subject, body := Compose(job)
	if subject != "Your appointment is booked" {
		t.Fatalf("unexpected subject %q", subject)
	}
	if !strings.Contains(body, "Dr. Osei") || !strings.Contains(body, "2026-09-14T10:00:00Z") {
		t.Fatalf("body missing details: %q", body)
	}

	job.TemplateData["kind"] = KindReminder
	subject, body = Compose(job)
	if subject != "Appointment reminder" {
		t.Fatalf("unexpected subject %q", subject)
	}
	if !strings.Contains(body, "reminder") {
		t.Fatalf("unexpected body %q", body)
	}
}

// A job carrying exactly what the booked-event consumer stores must surface
// the doctor's name in the rendered body, not the generic fallback.
func TestCompose_NamesDoctorFromTemplateData(t *testing.T) {
	job := Job{TemplateData: NewTemplateData(KindConfirmation, "2026-09-14T10:00:00Z", "Dr. Khatun")}

	_, body := Compose(job)
	if !strings.Contains(body, "Dr. Khatun") {
		t.Fatalf("body does not name the doctor: %q", body)
	}
	if strings.Contains(body, "your doctor") {
		t.Fatalf("fell back to the generic doctor wording: %q", body)
	}
}

func TestCompose_Defaults(t *testing.T) {
	subject, body := Compose(Job{TemplateData: map[string]any{}})
	if subject != "Appointment reminder" {
		t.Fatalf("unknown kind should fall back to reminder, got %q", subject)
	}
	if !strings.Contains(body, "your doctor") {
		t.Fatalf("missing doctor fallback: %q", body)
	}
}
