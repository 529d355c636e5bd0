package notify

import (
	"fmt"
	"time"

	"scantrack/internal/roster"
)

func actionText(event Event) string {
	if event == EventTimeOut {
		return "left"
	}
	return "arrived at"
}

func emailSubject(student roster.StudentIdentity, event Event) string {
	if event == EventTimeOut {
		return fmt.Sprintf("%s Left School", student.FirstName)
	}
	return fmt.Sprintf("%s Arrived at School", student.FirstName)
}

// emailBody renders the guardian email. Layout follows the school's
// notification template: headline, highlighted detail card, footer.
func emailBody(student roster.StudentIdentity, event Event, ts time.Time) string {
	return fmt.Sprintf(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #3b82f6;">School Attendance Notification</h2>
  <div style="background-color: #f0f9ff; padding: 20px; border-radius: 8px; margin: 20px 0;">
    <h3 style="margin: 0 0 10px 0;">%s has %s school</h3>
    <p style="margin: 5px 0;"><strong>Time:</strong> %s</p>
    <p style="margin: 5px 0;"><strong>Date:</strong> %s</p>
    <p style="margin: 5px 0;"><strong>Grade:</strong> %s</p>
  </div>
  <p style="color: #6b7280; font-size: 14px;">This is an automated message from the school attendance system.</p>
</div>`,
		student.FullName(), actionText(event), formatTime(ts), formatDate(ts), student.GradeLevel)
}

// smsBody renders the guardian SMS.
func smsBody(student roster.StudentIdentity, event Event, ts time.Time) string {
	return fmt.Sprintf("Hello! Your child %s has %s school at %s on %s.",
		student.FullName(), actionText(event), formatTime(ts), formatDate(ts))
}

func formatTime(ts time.Time) string { return ts.Format("3:04 PM") }
func formatDate(ts time.Time) string { return ts.Format("01/02/2006") }
