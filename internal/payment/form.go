package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/url"
	"sort"
)

var ErrNoGatewayURL = errors.New("payment gateway url missing or invalid")

// excludedFields are response metadata, not gateway form fields.
var excludedFields = map[string]struct{}{
	"message":        {},
	"payment_id":     {},
	"reference_id":   {},
	"esewa_url":      {},
	"transaction_id": {},
}

type FormField struct {
	Name  string
	Value string
}

// GatewayForm is the POST the browser must submit to hand control to the
// payment gateway.
type GatewayForm struct {
	Action string
	Fields []FormField
}

// BuildGatewayForm turns the backend's payment_data into form fields, sorted
// by name.
func BuildGatewayForm(action string, data map[string]any) (*GatewayForm, error) {
	u, err := url.Parse(action)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return nil, ErrNoGatewayURL
	}

	form := &GatewayForm{Action: u.String(), Fields: make([]FormField, 0, len(data))}
	for name, v := range data {
		if _, skip := excludedFields[name]; skip {
			continue
		}
		form.Fields = append(form.Fields, FormField{Name: name, Value: formValue(v)})
	}
	sort.Slice(form.Fields, func(i, j int) bool { return form.Fields[i].Name < form.Fields[j].Name })
	return form, nil
}

// Value returns the value of the named field.
func (f *GatewayForm) Value(name string) (string, bool) {
	for _, field := range f.Fields {
		if field.Name == name {
			return field.Value, true
		}
	}
	return "", false
}

func formValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

var gatewayTemplate = template.Must(template.New("gateway").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Redirecting to payment</title>
</head>
<body>
<p>Redirecting to the payment gateway&hellip;</p>
<form id="gateway" method="POST" action="{{.Action}}">
{{- range .Fields}}
<input type="hidden" name="{{.Name}}" value="{{.Value}}">
{{- end}}
<noscript><button type="submit">Continue to payment</button></noscript>
</form>
<script>document.getElementById("gateway").submit();</script>
</body>
</html>
`))

// Render writes a document that submits the form as soon as it loads.
func (f *GatewayForm) Render(w io.Writer) error {
	return gatewayTemplate.Execute(w, f)
}
