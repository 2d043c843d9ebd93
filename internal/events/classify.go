// Package events ingests and analyzes upstream webhook payloads. The
// portal treats payload content as queryable records; field extraction
// tolerates both camelCase and snake_case variants the upstream emits.
package events

import (
	"encoding/json"
	"fmt"

	jmes "github.com/jmespath/go-jmespath"

	"hcmnotify/pkg/tenants"
)

const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

var (
	eventTypeExpr = jmes.MustCompile("eventType || event_type")
	eventIDExpr   = jmes.MustCompile("eventId || event_id")
	employeeID    = jmes.MustCompile("employeeId || employee_id")
	employeeName  = jmes.MustCompile("employeeName || employee_name")
	companyIDExpr = jmes.MustCompile("companyId || company_id")
)

func searchString(expr *jmes.JMESPath, doc any) string {
	v, err := expr.Search(doc)
	if err != nil || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return fmt.Sprintf("%.0f", s)
	default:
		return fmt.Sprint(s)
	}
}

// Severity maps an upstream event type to a triage level. Direct-deposit
// account updates are the high-risk signal the dashboard exists for.
func Severity(eventType string) string {
	switch eventType {
	case "ACCOUNT_UPDATED":
		return SeverityCritical
	case "ACCOUNT_CREATED":
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// Classify turns a raw webhook payload into a storable event record.
// Unknown or missing fields degrade to empty strings; ingestion never
// rejects a payload.
func Classify(raw []byte) tenants.WebhookEvent {
	var doc any
	_ = json.Unmarshal(raw, &doc)

	eventType := searchString(eventTypeExpr, doc)
	if eventType == "" {
		eventType = "UNKNOWN"
	}
	return tenants.WebhookEvent{
		EventType:    eventType,
		EventID:      searchString(eventIDExpr, doc),
		EmployeeID:   searchString(employeeID, doc),
		EmployeeName: searchString(employeeName, doc),
		CompanyID:    searchString(companyIDExpr, doc),
		Payload:      string(raw),
		Severity:     Severity(eventType),
		Status:       "new",
	}
}
