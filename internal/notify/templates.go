package notify

import (
	"fmt"
	"html/template"
	"strings"
	"time"
)

var expirationWarningTmpl = template.Must(template.New("expiration_warning").Parse(`
<html>
<body style="font-family: sans-serif; color: #333;">
  <h2>Project expiring soon</h2>
  <p>Your project <strong>{{.ProjectName}}</strong> expires on
  <strong>{{.ExpiresAt.Format "January 2, 2006"}}</strong>
  ({{.DaysLeft}} day{{if ne .DaysLeft 1}}s{{end}} from now).</p>
  <p>After expiration, AR content in this project stops resolving for
  viewers. Renew the project to keep it live.</p>
</body>
</html>`))

var projectExpiredTmpl = template.Must(template.New("project_expired").Parse(`
<html>
<body style="font-family: sans-serif; color: #333;">
  <h2>Project expired</h2>
  <p>Your project <strong>{{.ProjectName}}</strong> expired on
  <strong>{{.ExpiresAt.Format "January 2, 2006"}}</strong> and its AR
  content has been deactivated.</p>
  <p>Renewing the project restores the content without re-processing.</p>
</body>
</html>`))

type templateData struct {
	ProjectName string
	ExpiresAt   time.Time
	DaysLeft    int
}

// RenderExpirationWarning builds the subject and HTML body for the
// pre-expiration warning email.
func RenderExpirationWarning(projectName string, expiresAt, now time.Time) (subject, body string, err error) {
	daysLeft := int(expiresAt.Sub(now).Hours() / 24)
	if daysLeft < 0 {
		daysLeft = 0
	}

	var buf strings.Builder
	err = expirationWarningTmpl.Execute(&buf, templateData{
		ProjectName: projectName,
		ExpiresAt:   expiresAt,
		DaysLeft:    daysLeft,
	})
	if err != nil {
		return "", "", fmt.Errorf("render expiration warning: %w", err)
	}

	subject = fmt.Sprintf("Project %q expires in %d days", projectName, daysLeft)
	return subject, buf.String(), nil
}

// RenderProjectExpired builds the subject and HTML body for the
// post-deactivation notice.
func RenderProjectExpired(projectName string, expiresAt time.Time) (subject, body string, err error) {
	var buf strings.Builder
	err = projectExpiredTmpl.Execute(&buf, templateData{
		ProjectName: projectName,
		ExpiresAt:   expiresAt,
	})
	if err != nil {
		return "", "", fmt.Errorf("render project expired: %w", err)
	}

	subject = fmt.Sprintf("Project %q has expired", projectName)
	return subject, buf.String(), nil
}
