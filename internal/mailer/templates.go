package mailer

import (
	"bytes"
	"fmt"
	"html/template"
)

var (
	verifyEmailTmpl = template.Must(template.New("verify").Parse(`
<h2>Hello {{.Name}}</h2>
<p>Please use the link below to verify your email and activate your account</p>
<p>This link is valid for only 30 minutes</p>
<a href="{{.URL}}" clicktracking=off>{{.URL}}</a>
<p>Regards...</p>
<p>{{.AppName}} team</p>
`))

	resetPasswordTmpl = template.Must(template.New("reset").Parse(`
<h2>Hello {{.Name}}</h2>
<p>Please use the link below to reset your password</p>
<p>This link is valid for only 30 minutes</p>
<a href="{{.URL}}" clicktracking=off>{{.URL}}</a>
<p>Regards...</p>
<p>{{.AppName}} team</p>
`))

	reminderTmpl = template.Must(template.New("reminder").Parse(`
<h2>Hello {{.Name}}</h2>
<p>It's {{.WorkoutTime}}, time for your workout!</p>
{{if gt .Streak 0}}<p>You are on a {{.Streak}} day streak, keep it going.</p>{{end}}
<p>{{.AppName}} team</p>
`))
)

type linkEmailData struct {
	Name    string
	URL     string
	AppName string
}

type reminderEmailData struct {
	Name        string
	WorkoutTime string
	Streak      int
	AppName     string
}

func VerificationEmail(to, name, url, appName string) (Message, error) {
	body, err := render(verifyEmailTmpl, linkEmailData{Name: name, URL: url, AppName: appName})
	if err != nil {
		return Message{}, err
	}
	return Message{
		Kind:     KindVerifyEmail,
		To:       to,
		Subject:  "Email Verification",
		HTMLBody: body,
	}, nil
}

func ResetPasswordEmail(to, name, url, appName string) (Message, error) {
	body, err := render(resetPasswordTmpl, linkEmailData{Name: name, URL: url, AppName: appName})
	if err != nil {
		return Message{}, err
	}
	return Message{
		Kind:     KindResetPassword,
		To:       to,
		Subject:  "Password Reset Request",
		HTMLBody: body,
	}, nil
}

func ReminderEmail(to, name, workoutTime string, streak int, appName string) (Message, error) {
	body, err := render(reminderTmpl, reminderEmailData{
		Name:        name,
		WorkoutTime: workoutTime,
		Streak:      streak,
		AppName:     appName,
	})
	if err != nil {
		return Message{}, err
	}
	return Message{
		Kind:     KindReminder,
		To:       to,
		Subject:  "Workout Reminder",
		HTMLBody: body,
	}, nil
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s email: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}
