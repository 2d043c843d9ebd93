package events

import (
	"encoding/json"
	"fmt"

	jmes "github.com/jmespath/go-jmespath"

	"hcmnotify/pkg/tenants"
)

// Pattern is a suspicious grouping detected across recent webhook events.
type Pattern struct {
	Type           string   `json:"type"`
	Severity       string   `json:"severity"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Recommendation string   `json:"recommendation"`
	Employee       string   `json:"employee,omitempty"`
	Date           string   `json:"date,omitempty"`
	Count          int      `json:"count,omitempty"`
	Events         []string `json:"events,omitempty"`
}

var (
	amountExpr  = jmes.MustCompile("fields.amount")
	accountExpr = jmes.MustCompile("fields.accountNumber")
)

// Detect scans recent events for known fraud indicators: repeated
// direct-deposit changes for one employee, clusters of changes on one
// day, and full-paycheck redirects. Results are deduplicated by
// type+subject.
func Detect(recent []tenants.WebhookEvent) []Pattern {
	var patterns []Pattern

	byEmployee := map[string][]tenants.WebhookEvent{}
	for _, e := range recent {
		if e.EmployeeID == "" {
			continue
		}
		byEmployee[e.EmployeeID] = append(byEmployee[e.EmployeeID], e)
	}
	for empID, evts := range byEmployee {
		if len(evts) < 2 {
			continue
		}
		var ids []string
		for _, e := range evts {
			ids = append(ids, e.EventType)
		}
		patterns = append(patterns, Pattern{
			Type:     "REPEAT_CHANGE",
			Severity: SeverityCritical,
			Title:    "Repeated DD Changes",
			Description: fmt.Sprintf("%s (%s) has %d DD changes in recent history. Possible payroll fraud indicator.",
				evts[0].EmployeeName, empID, len(evts)),
			Recommendation: "Verify with employee and payroll department. Cross-reference with IP/device logs if available.",
			Employee:       evts[0].EmployeeName,
			Count:          len(evts),
			Events:         ids,
		})
	}

	byDate := map[string][]tenants.WebhookEvent{}
	for _, e := range recent {
		day := e.CreatedAt.Format("2006-01-02")
		byDate[day] = append(byDate[day], e)
	}
	for day, evts := range byDate {
		if len(evts) < 3 {
			continue
		}
		patterns = append(patterns, Pattern{
			Type:     "CLUSTER",
			Severity: SeverityWarning,
			Title:    "Change Cluster Detected",
			Description: fmt.Sprintf("%d DD changes detected on %s. Unusual volume may indicate a coordinated attack or system issue.",
				len(evts), day),
			Recommendation: "Review all changes for this date. Check if they originate from the same IP or session.",
			Date:           day,
			Count:          len(evts),
		})
	}

	for _, e := range recent {
		if e.EventType != "ACCOUNT_UPDATED" {
			continue
		}
		var doc any
		if err := json.Unmarshal([]byte(e.Payload), &doc); err != nil {
			continue
		}
		if amt, _ := amountExpr.Search(doc); amt != "100%" {
			continue
		}
		account, _ := accountExpr.Search(doc)
		patterns = append(patterns, Pattern{
			Type:     "FULL_REDIRECT",
			Severity: SeverityCritical,
			Title:    "100% Deposit Redirect",
			Description: fmt.Sprintf("%s's entire paycheck redirected to new account (%v). This is the highest-risk DD change pattern.",
				e.EmployeeName, account),
			Recommendation: "IMMEDIATE ACTION: Contact employee to verify. Place payroll hold if unverified within 24 hours.",
			Employee:       e.EmployeeName,
		})
	}

	seen := map[string]bool{}
	out := patterns[:0]
	for _, p := range patterns {
		key := p.Type + "-" + p.Employee + p.Date
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}
