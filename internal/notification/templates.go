package notification

import (
	"fmt"
	"strings"

	"veripass/internal/models"
)

// StatusActionURL is where application_update notifications link to.
const StatusActionURL = "/user/pass-status/"

type statusTemplate struct {
	Title   string
	Message string
	Subject string
}

var statusTemplates = map[models.Status]statusTemplate{
	models.StatusSubmitted: {
		Title:   "Application Submitted Successfully",
		Message: "Your vehicle registration application #{{registrationNumber}} has been submitted and is under review.",
		Subject: "Vehicle Pass Application Submitted",
	},
	models.StatusInitialApproval: {
		Title:   "Initial Approval Received",
		Message: "Your application #{{registrationNumber}} has received initial approval from OIC.",
		Subject: "Vehicle Pass Application - Initial Approval",
	},
	models.StatusFinalApproval: {
		Title:   "Final Approval Pending",
		Message: "Your application #{{registrationNumber}} is waiting for final approval from GSO Director.",
		Subject: "Vehicle Pass Application - Final Approval Pending",
	},
	models.StatusApproved: {
		Title:   "Application Approved!",
		Message: "Congratulations! Your vehicle pass application #{{registrationNumber}} has been approved.",
		Subject: "Vehicle Pass Application Approved",
	},
	models.StatusStickerReleased: {
		Title:   "Vehicle Pass Sticker Ready",
		Message: "Your vehicle pass sticker for application #{{registrationNumber}} is ready for pickup.",
		Subject: "Vehicle Pass Sticker Ready for Pickup",
	},
	models.StatusRejected: {
		Title:   "Application Rejected",
		Message: "Unfortunately, your application #{{registrationNumber}} has been rejected. Please check remarks for details.",
		Subject: "Vehicle Pass Application Rejected",
	},
}

const statusEmailTemplate = `Dear {{firstname}} {{lastname}},

{{message}}

Registration Details:
- Registration Number: {{registrationNumber}}
- Vehicle: {{makeModel}} ({{plateNumber}})
- Status: {{status}}
{{remarksLine}}
You can check your application status at: {{siteURL}}/user/pass-status/

Best regards,
Veripass Official (PalSU-GSO)
`

const announcementEmailTemplate = `{{title}}

{{message}}

Posted by: {{postedBy}}
Date: {{datePosted}}

Best regards,
PSU Vehicle Pass System
`

// announcementSubject prefixes the announcement title.
func announcementSubject(title string) string {
	return "Announcement: " + title
}

// renderTemplate replaces {{key}} placeholders and drops unknown ones.
func renderTemplate(tmpl string, data map[string]interface{}) string {
	result := tmpl
	for k, v := range data {
		value := ""
		switch t := v.(type) {
		case string:
			value = t
		case nil:
		default:
			value = fmt.Sprintf("%v", t)
		}
		result = strings.ReplaceAll(result, "{{"+k+"}}", value)
	}

	for {
		start := strings.Index(result, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}}")
		if end == -1 {
			break
		}
		result = result[:start] + result[start+end+2:]
	}
	return result
}

type renderedStatus struct {
	Title   string
	Message string
	Subject string
	Body    string
}

func renderStatus(tmpl statusTemplate, reg *models.Registration, user *models.User, vehicle *models.Vehicle, siteURL string) renderedStatus {
	data := map[string]interface{}{
		"registrationNumber": reg.RegistrationNumber,
		"firstname":          user.Firstname,
		"lastname":           user.Lastname,
		"status":             reg.Status.Title(),
		"siteURL":            siteURL,
	}
	if vehicle != nil {
		data["makeModel"] = vehicle.MakeModel
		data["plateNumber"] = vehicle.PlateNumber
	}
	message := renderTemplate(tmpl.Message, data)
	data["message"] = message
	if reg.Remarks != "" {
		data["remarksLine"] = "- Remarks: " + reg.Remarks + "\n"
	}

	return renderedStatus{
		Title:   tmpl.Title,
		Message: message,
		Subject: tmpl.Subject,
		Body:    renderTemplate(statusEmailTemplate, data),
	}
}

func renderAnnouncementBody(a *models.Announcement, poster *models.User) string {
	postedBy := ""
	if poster != nil {
		postedBy = poster.FullName()
	}
	return renderTemplate(announcementEmailTemplate, map[string]interface{}{
		"title":      a.Title,
		"message":    a.Message,
		"postedBy":   postedBy,
		"datePosted": a.DatePosted.Format("January 02, 2006 at 03:04 PM"),
	})
}
