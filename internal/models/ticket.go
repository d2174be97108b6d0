package models

import (
	"context"
	"strconv"
	"strings"
	"time"

	contextutils "appfeedback/internal/utils"
)

// Ticket groups reports for triage.
type Ticket struct {
	ID                    string     `json:"ticket_id"`
	Name                  string     `json:"ticket_name"`
	Platform              Platform   `json:"platform"`
	GithubIssueRepoName   *string    `json:"github_issue_repo_name"`
	GithubIssueNumber     *int       `json:"github_issue_number"`
	Archived              bool       `json:"archived"`
	NewestReportTimestamp *time.Time `json:"newest_report_timestamp"`
	ReportIDs             []string   `json:"reports"`
}

// ReportExistenceChecker reports whether a report id resolves to a stored report.
type ReportExistenceChecker interface {
	ReportExists(ctx context.Context, id string) (bool, error)
}

// Validate checks the ticket's own fields. Member ids are checked separately
// by RequireValidReportIDs since that needs storage.
func (t *Ticket) Validate() error {
	if err := RequireValidTicketID(t.ID); err != nil {
		return err
	}
	if err := RequireValidTicketName(t.Name); err != nil {
		return err
	}
	if !isOneOf(t.Platform, Platforms) {
		return contextutils.NewValidationError("platform", "platform must be one of %v, got %q", Platforms, t.Platform)
	}
	if t.GithubIssueRepoName != nil && !isOneOf(Platform(*t.GithubIssueRepoName), Platforms) {
		return contextutils.NewValidationError("github_issue_repo_name",
			"github repo %q is invalid, must be one of %v", *t.GithubIssueRepoName, Platforms)
	}
	if t.GithubIssueNumber != nil && *t.GithubIssueNumber < 1 {
		return contextutils.NewValidationError("github_issue_number",
			"github issue number must be a positive integer, got %d", *t.GithubIssueNumber)
	}
	if t.ReportIDs == nil {
		return contextutils.NewValidationError("reports", "reports list is required")
	}
	return nil
}

// RequireValidReportIDs checks that every member id resolves.
func (t *Ticket) RequireValidReportIDs(ctx context.Context, checker ReportExistenceChecker) error {
	for _, id := range t.ReportIDs {
		ok, err := checker.ReportExists(ctx, id)
		if err != nil {
			return contextutils.WrapErrorf(err, "failed to check report %s", id)
		}
		if !ok {
			return contextutils.NewValidationError("reports", "the report with id %s does not exist", id)
		}
	}
	return nil
}

// HasReport reports whether id is a member of the ticket.
func (t *Ticket) HasReport(id string) bool {
	for _, member := range t.ReportIDs {
		if member == id {
			return true
		}
	}
	return false
}

// RemoveReport drops id from the member list, keeping the order of the rest.
func (t *Ticket) RemoveReport(id string) {
	kept := make([]string, 0, len(t.ReportIDs))
	for _, member := range t.ReportIDs {
		if member != id {
			kept = append(kept, member)
		}
	}
	t.ReportIDs = kept
}

// AddReport appends id and advances the newest report watermark.
func (t *Ticket) AddReport(id string, submittedOn time.Time) {
	if !t.HasReport(id) {
		t.ReportIDs = append(t.ReportIDs, id)
	}
	if t.NewestReportTimestamp == nil || submittedOn.After(*t.NewestReportTimestamp) {
		ts := submittedOn
		t.NewestReportTimestamp = &ts
	}
}

// RequireValidTicketID checks that id splits into exactly three parts.
func RequireValidTicketID(id string) error {
	if id == "" {
		return contextutils.NewValidationError("ticket_id", "ticket_id is required")
	}
	if len(strings.Split(id, TicketIDDelimiter)) != 3 {
		return contextutils.NewValidationError("ticket_id", "the ticket id %s is invalid", id)
	}
	return nil
}

// RequireValidTicketName checks presence and length of a ticket name.
func RequireValidTicketName(name string) error {
	return contextutils.ValidateVar("ticket_name", name, "required,max="+strconv.Itoa(MaximumTicketNameLength))
}
