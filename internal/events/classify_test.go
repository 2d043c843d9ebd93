package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hcmnotify/pkg/tenants"
)

func TestClassifyCamelCase(t *testing.T) {
	raw := []byte(`{"eventType":"ACCOUNT_UPDATED","eventId":"evt-1","employeeId":"E100","employeeName":"Jane Doe","companyId":"333"}`)
	ev := Classify(raw)
	assert.Equal(t, "ACCOUNT_UPDATED", ev.EventType)
	assert.Equal(t, "evt-1", ev.EventID)
	assert.Equal(t, "E100", ev.EmployeeID)
	assert.Equal(t, "Jane Doe", ev.EmployeeName)
	assert.Equal(t, "333", ev.CompanyID)
	assert.Equal(t, SeverityCritical, ev.Severity)
	assert.Equal(t, "new", ev.Status)
	assert.Equal(t, string(raw), ev.Payload)
}

func TestClassifySnakeCase(t *testing.T) {
	ev := Classify([]byte(`{"event_type":"ACCOUNT_CREATED","event_id":"evt-2","employee_id":"E200","employee_name":"Bob","company_id":"7"}`))
	assert.Equal(t, "ACCOUNT_CREATED", ev.EventType)
	assert.Equal(t, "evt-2", ev.EventID)
	assert.Equal(t, "E200", ev.EmployeeID)
	assert.Equal(t, SeverityWarning, ev.Severity)
}

func TestClassifyNumericIDs(t *testing.T) {
	ev := Classify([]byte(`{"eventType":"ACCOUNT_DELETED","employeeId":42,"companyId":333}`))
	assert.Equal(t, "42", ev.EmployeeID)
	assert.Equal(t, "333", ev.CompanyID)
	assert.Equal(t, SeverityInfo, ev.Severity)
}

func TestClassifyMissingFields(t *testing.T) {
	ev := Classify([]byte(`{}`))
	assert.Equal(t, "UNKNOWN", ev.EventType)
	assert.Empty(t, ev.EmployeeID)
	assert.Equal(t, SeverityInfo, ev.Severity)
}

func TestClassifyMalformedPayloadKept(t *testing.T) {
	raw := []byte(`not json at all`)
	ev := Classify(raw)
	assert.Equal(t, "UNKNOWN", ev.EventType)
	assert.Equal(t, string(raw), ev.Payload)
}

func mkEvent(empID, empName, eventType, payload string, at time.Time) tenants.WebhookEvent {
	return tenants.WebhookEvent{
		EventType:    eventType,
		EmployeeID:   empID,
		EmployeeName: empName,
		Payload:      payload,
		Severity:     Severity(eventType),
		CreatedAt:    at,
	}
}

func TestDetectRepeatChange(t *testing.T) {
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	recent := []tenants.WebhookEvent{
		mkEvent("E1", "Jane Doe", "ACCOUNT_UPDATED", `{}`, base),
		mkEvent("E1", "Jane Doe", "ACCOUNT_UPDATED", `{}`, base.AddDate(0, 0, 2)),
		mkEvent("E2", "Bob", "ACCOUNT_CREATED", `{}`, base.AddDate(0, 0, 4)),
	}
	patterns := Detect(recent)
	require.Len(t, patterns, 1)
	p := patterns[0]
	assert.Equal(t, "REPEAT_CHANGE", p.Type)
	assert.Equal(t, SeverityCritical, p.Severity)
	assert.Equal(t, "Jane Doe", p.Employee)
	assert.Equal(t, 2, p.Count)
}

func TestDetectCluster(t *testing.T) {
	day := time.Date(2026, 8, 15, 9, 0, 0, 0, time.UTC)
	recent := []tenants.WebhookEvent{
		mkEvent("E1", "A", "ACCOUNT_UPDATED", `{}`, day),
		mkEvent("E2", "B", "ACCOUNT_UPDATED", `{}`, day.Add(time.Hour)),
		mkEvent("E3", "C", "ACCOUNT_CREATED", `{}`, day.Add(2*time.Hour)),
	}
	patterns := Detect(recent)
	require.Len(t, patterns, 1)
	assert.Equal(t, "CLUSTER", patterns[0].Type)
	assert.Equal(t, "2026-08-15", patterns[0].Date)
	assert.Equal(t, 3, patterns[0].Count)
}

func TestDetectFullRedirect(t *testing.T) {
	at := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	payload := `{"eventType":"ACCOUNT_UPDATED","fields":{"amount":"100%","accountNumber":"****9876"}}`
	patterns := Detect([]tenants.WebhookEvent{
		mkEvent("E9", "Carol", "ACCOUNT_UPDATED", payload, at),
	})
	require.Len(t, patterns, 1)
	p := patterns[0]
	assert.Equal(t, "FULL_REDIRECT", p.Type)
	assert.Equal(t, SeverityCritical, p.Severity)
	assert.Contains(t, p.Description, "Carol")
	assert.Contains(t, p.Description, "****9876")
}

func TestDetectPartialAmountIgnored(t *testing.T) {
	at := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	payload := `{"eventType":"ACCOUNT_UPDATED","fields":{"amount":"50%","accountNumber":"****1111"}}`
	patterns := Detect([]tenants.WebhookEvent{
		mkEvent("E9", "Carol", "ACCOUNT_UPDATED", payload, at),
	})
	assert.Empty(t, patterns)
}

func TestDetectDeduplicates(t *testing.T) {
	day := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)
	redirect := `{"eventType":"ACCOUNT_UPDATED","fields":{"amount":"100%","accountNumber":"****2222"}}`
	recent := []tenants.WebhookEvent{
		mkEvent("E5", "Dave", "ACCOUNT_UPDATED", redirect, day),
		mkEvent("E5", "Dave", "ACCOUNT_UPDATED", redirect, day.Add(time.Hour)),
		mkEvent("E5", "Dave", "ACCOUNT_UPDATED", redirect, day.Add(2*time.Hour)),
	}
	patterns := Detect(recent)
	types := map[string]int{}
	for _, p := range patterns {
		types[p.Type]++
	}
	assert.Equal(t, 1, types["REPEAT_CHANGE"])
	assert.Equal(t, 1, types["CLUSTER"])
	assert.Equal(t, 1, types["FULL_REDIRECT"])
}

func TestDetectEmptyInput(t *testing.T) {
	assert.Empty(t, Detect(nil))
}
