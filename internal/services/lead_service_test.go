package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mdmc/internal/errs"
	"mdmc/internal/models"
)

func TestAgentSeesOnlyAssignedLeads(t *testing.T) {
	f := newFixture(t)
	admin := f.account(t, models.RoleAdmin, "admin@example.com")
	agent := f.account(t, models.RoleAgent, "agent@example.com")
	other := f.account(t, models.RoleAgent, "other@example.com")

	mine := f.lead(t, "mine@example.com", agent.ID, 10)
	theirs := f.lead(t, "theirs@example.com", other.ID, 10)
	f.lead(t, "nobody@example.com", "", 10)

	leads, page, err := f.leads.List(f.ctx, LeadListParams{}, agent)
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, mine.ID, leads[0].ID)
	assert.EqualValues(t, 1, page.Total)

	// An explicit assignee filter cannot widen the agent's scope.
	leads, _, err = f.leads.List(f.ctx, LeadListParams{LeadFilter: LeadFilter{AssignedTo: other.ID}}, agent)
	require.NoError(t, err)
	assert.Empty(t, leads)

	leads, page, err = f.leads.List(f.ctx, LeadListParams{}, admin)
	require.NoError(t, err)
	assert.Len(t, leads, 3)
	assert.EqualValues(t, 3, page.Total)

	_, err = f.leads.Get(f.ctx, theirs.ID, agent)
	requireKind(t, err, errs.KindForbidden)

	name := "Changed"
	_, err = f.leads.Update(f.ctx, theirs.ID, LeadPatch{FirstName: &name}, agent)
	requireKind(t, err, errs.KindForbidden)
	unchanged, err := f.stores.Leads.Get(f.ctx, theirs.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lead", unchanged.FirstName)
}

func TestListPagingAndSortValidation(t *testing.T) {
	f := newFixture(t)
	admin := f.account(t, models.RoleAdmin, "admin@example.com")
	for i, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		f.lead(t, email, "", i*10)
	}

	leads, page, err := f.leads.List(f.ctx, LeadListParams{PageParams: PageParams{Page: 2, Limit: 2, Sort: "score", Order: "asc"}}, admin)
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, 20, leads[0].Score)
	assert.Equal(t, Pagination{Page: 2, Limit: 2, Total: 3, Pages: 2, HasNext: false, HasPrev: true}, page)

	_, _, err = f.leads.List(f.ctx, LeadListParams{PageParams: PageParams{Sort: "password"}}, admin)
	requireKind(t, err, errs.KindValidation)

	_, _, err = f.leads.List(f.ctx, LeadListParams{PageParams: PageParams{Order: "sideways"}}, admin)
	requireKind(t, err, errs.KindValidation)

	leads, _, err = f.leads.List(f.ctx, LeadListParams{LeadFilter: LeadFilter{Score: "15-100"}}, admin)
	require.NoError(t, err)
	assert.Len(t, leads, 1)
}

func TestCreateLeadAssignment(t *testing.T) {
	f := newFixture(t)
	agent := f.account(t, models.RoleAgent, "agent@example.com")
	other := f.account(t, models.RoleAgent, "other@example.com")
	manager := f.account(t, models.RoleManager, "manager@example.com")

	in := LeadInput{FirstName: "New", LastName: "Artist", Email: "artist@example.com", Source: "website"}
	lead, err := f.leads.Create(f.ctx, in, agent)
	require.NoError(t, err)
	assert.Equal(t, agent.ID, lead.AssignedTo)
	assert.NotNil(t, lead.AssignedAt)
	assert.Equal(t, models.LeadStatusNew, lead.Status)
	assert.Equal(t, agent.ID, lead.CreatedBy)

	in.Email = "second@example.com"
	in.AssignedTo = other.ID
	_, err = f.leads.Create(f.ctx, in, agent)
	requireKind(t, err, errs.KindForbidden)

	lead, err = f.leads.Create(f.ctx, in, manager)
	require.NoError(t, err)
	assert.Equal(t, other.ID, lead.AssignedTo)

	_, err = f.leads.Create(f.ctx, in, manager)
	requireKind(t, err, errs.KindConflict)
	assert.Equal(t, "Lead with this email already exists", err.Error())

	in.Email = "third@example.com"
	in.AssignedTo = "2d1c5b7e-0000-4000-8000-000000000000"
	_, err = f.leads.Create(f.ctx, in, manager)
	requireKind(t, err, errs.KindNotFound)
}

func TestInteractionOutcomeAdjustsScore(t *testing.T) {
	f := newFixture(t)
	agent := f.account(t, models.RoleAgent, "agent@example.com")
	high := f.lead(t, "high@example.com", agent.ID, 95)
	low := f.lead(t, "low@example.com", agent.ID, 3)

	add := func(id string, outcome models.Outcome) *models.Lead {
		l, err := f.leads.AddInteraction(f.ctx, id, InteractionInput{
			Type: models.InteractionCall, Description: "Intro call", Outcome: outcome,
		}, agent)
		require.NoError(t, err)
		return l
	}

	l := add(high.ID, models.OutcomePositive)
	assert.Equal(t, 100, l.Score)
	assert.Len(t, l.Interactions, 1)
	assert.Equal(t, agent.ID, l.Interactions[0].CreatedBy)

	l = add(low.ID, models.OutcomeNegative)
	assert.Equal(t, 0, l.Score)

	l = add(low.ID, models.OutcomeNeutral)
	assert.Equal(t, 0, l.Score)
	assert.Equal(t, models.TemperatureWarm, l.Temperature)

	_, err := f.leads.AddInteraction(f.ctx, low.ID, InteractionInput{Type: models.InteractionCall, Description: " "}, agent)
	requireKind(t, err, errs.KindValidation)
}

func TestReassignIsAdminOnly(t *testing.T) {
	f := newFixture(t)
	admin := f.account(t, models.RoleAdmin, "admin@example.com")
	manager := f.account(t, models.RoleManager, "manager@example.com")
	agent := f.account(t, models.RoleAgent, "agent@example.com")
	lead := f.lead(t, "lead@example.com", "", 0)

	_, err := f.leads.Reassign(f.ctx, lead.ID, agent.ID, manager)
	requireKind(t, err, errs.KindForbidden)

	got, err := f.leads.Reassign(f.ctx, lead.ID, agent.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, agent.ID, got.AssignedTo)
	require.NotNil(t, got.LastInteraction())
	assert.Equal(t, "Lead reassigned", got.LastInteraction().Description)

	_, err = f.leads.Update(f.ctx, lead.ID, LeadPatch{AssignedTo: &manager.ID}, manager)
	requireKind(t, err, errs.KindForbidden)
}

func TestAgentMayRestateOwnAssignment(t *testing.T) {
	f := newFixture(t)
	agent := f.account(t, models.RoleAgent, "agent@example.com")
	other := f.account(t, models.RoleAgent, "other@example.com")
	lead := f.lead(t, "lead@example.com", agent.ID, 0)

	name := "Renamed"
	got, err := f.leads.Update(f.ctx, lead.ID, LeadPatch{FirstName: &name, AssignedTo: &agent.ID}, agent)
	require.NoError(t, err)
	assert.Equal(t, agent.ID, got.AssignedTo)
	assert.Equal(t, "Renamed", got.FirstName)

	_, err = f.leads.Update(f.ctx, lead.ID, LeadPatch{AssignedTo: &other.ID}, agent)
	requireKind(t, err, errs.KindForbidden)
}

func TestConvertAndMarkLost(t *testing.T) {
	f := newFixture(t)
	agent := f.account(t, models.RoleAgent, "agent@example.com")
	won := f.lead(t, "won@example.com", agent.ID, 40)
	lost := f.lead(t, "lost@example.com", agent.ID, 40)

	l, err := f.leads.Convert(f.ctx, won.ID, 2500, agent)
	require.NoError(t, err)
	assert.Equal(t, models.LeadStatusWon, l.Status)
	assert.Equal(t, 2500.0, l.ConversionValue)
	assert.NotNil(t, l.ConvertedAt)
	assert.Equal(t, models.MaxScore, l.Score)

	_, err = f.leads.Convert(f.ctx, won.ID, -1, agent)
	requireKind(t, err, errs.KindValidation)

	l, err = f.leads.MarkLost(f.ctx, lost.ID, "Budget too small", agent)
	require.NoError(t, err)
	assert.Equal(t, models.LeadStatusLost, l.Status)
	assert.Equal(t, 35, l.Score)
	assert.Contains(t, l.LastInteraction().Description, "Budget too small")
}

func TestDeleteHidesLead(t *testing.T) {
	f := newFixture(t)
	manager := f.account(t, models.RoleManager, "manager@example.com")
	agent := f.account(t, models.RoleAgent, "agent@example.com")
	lead := f.lead(t, "gone@example.com", agent.ID, 0)

	requireKind(t, f.leads.Delete(f.ctx, lead.ID, agent), errs.KindForbidden)
	require.NoError(t, f.leads.Delete(f.ctx, lead.ID, manager))

	_, err := f.leads.Get(f.ctx, lead.ID, manager)
	requireKind(t, err, errs.KindNotFound)
	requireKind(t, f.leads.Delete(f.ctx, lead.ID, manager), errs.KindNotFound)
}

func TestLeadBulkUpdateIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	agent := f.account(t, models.RoleAgent, "agent@example.com")
	other := f.account(t, models.RoleAgent, "other@example.com")
	mine := f.lead(t, "mine@example.com", agent.ID, 0)
	theirs := f.lead(t, "theirs@example.com", other.ID, 0)

	status := models.LeadStatusQualified
	_, err := f.leads.BulkUpdate(f.ctx, []string{mine.ID, theirs.ID}, LeadPatch{Status: &status}, agent)
	requireKind(t, err, errs.KindForbidden)

	got, err := f.stores.Leads.Get(f.ctx, mine.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LeadStatusNew, got.Status)

	updated, err := f.leads.BulkUpdate(f.ctx, []string{mine.ID}, LeadPatch{Status: &status}, agent)
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Equal(t, models.LeadStatusQualified, updated[0].Status)

	_, err = f.leads.BulkUpdate(f.ctx, nil, LeadPatch{Status: &status}, agent)
	requireKind(t, err, errs.KindValidation)

	bogus := models.LeadStatus("maybe")
	_, err = f.leads.BulkUpdate(f.ctx, []string{mine.ID}, LeadPatch{Status: &bogus}, agent)
	requireKind(t, err, errs.KindValidation)
}

func TestLeadBulkUpdateRejectsEmptyAssignee(t *testing.T) {
	f := newFixture(t)
	admin := f.account(t, models.RoleAdmin, "admin@example.com")
	lead := f.lead(t, "lead@example.com", "", 0)

	empty := ""
	_, err := f.leads.BulkUpdate(f.ctx, []string{lead.ID}, LeadPatch{AssignedTo: &empty}, admin)
	requireKind(t, err, errs.KindValidation)

	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.Contains(t, e.Fields, "assignedTo")
}

func TestOverdueSkipsClosedAndFutureLeads(t *testing.T) {
	f := newFixture(t)
	agent := f.account(t, models.RoleAgent, "agent@example.com")
	now := time.Now()

	older := f.lead(t, "older@example.com", agent.ID, 0)
	newer := f.lead(t, "newer@example.com", agent.ID, 0)
	future := f.lead(t, "future@example.com", agent.ID, 0)
	closed := f.lead(t, "closed@example.com", agent.ID, 0)

	_, err := f.leads.SetFollowUp(f.ctx, older.ID, now.Add(-48*time.Hour), "call back", agent)
	require.NoError(t, err)
	_, err = f.leads.SetFollowUp(f.ctx, newer.ID, now.Add(-time.Hour), "", agent)
	require.NoError(t, err)
	_, err = f.leads.SetFollowUp(f.ctx, future.ID, now.Add(time.Hour), "", agent)
	require.NoError(t, err)
	_, err = f.leads.SetFollowUp(f.ctx, closed.ID, now.Add(-time.Hour), "", agent)
	require.NoError(t, err)
	_, err = f.leads.Convert(f.ctx, closed.ID, 10, agent)
	require.NoError(t, err)

	overdue, err := f.leads.Overdue(f.ctx, agent)
	require.NoError(t, err)
	require.Len(t, overdue, 2)
	assert.Equal(t, older.ID, overdue[0].ID)
	assert.Equal(t, newer.ID, overdue[1].ID)

	counts, err := f.leads.OverdueByAssignee(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{agent.ID: 2}, counts)
}

func TestLeadStats(t *testing.T) {
	f := newFixture(t)
	agent := f.account(t, models.RoleAgent, "agent@example.com")
	a := f.lead(t, "a@example.com", agent.ID, 20)
	f.lead(t, "b@example.com", agent.ID, 40)
	f.lead(t, "c@example.com", "", 90)

	_, err := f.leads.Convert(f.ctx, a.ID, 1000, agent)
	require.NoError(t, err)

	stats, err := f.leads.Stats(f.ctx, agent)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.Total)
	assert.EqualValues(t, 1, stats.Converted)
	assert.Equal(t, 50.0, stats.ConversionRate)
	assert.Equal(t, 1000.0, stats.TotalValue)
	assert.Equal(t, 70.0, stats.AverageScore)
	assert.Len(t, stats.Recent, 2)
}

type memFiles struct {
	objects map[string][]byte
}

func (m *memFiles) Put(_ context.Context, key string, body []byte, _ string) error {
	m.objects[key] = body
	return nil
}

func (m *memFiles) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	return "https://files.example.com/" + key + "?ttl=" + ttl.String(), nil
}

func TestExportCSV(t *testing.T) {
	f := newFixture(t)
	agent := f.account(t, models.RoleAgent, "agent@example.com")
	f.lead(t, "mine@example.com", agent.ID, 10)
	f.lead(t, "theirs@example.com", "", 10)

	out, err := f.leads.Export(f.ctx, LeadFilter{}, ExportCSV, agent)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Count)
	assert.Equal(t, "text/csv", out.ContentType)

	rows, err := csv.NewReader(bytes.NewReader(out.Data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, exportHeader, rows[0])
	assert.Equal(t, "mine@example.com", rows[1][3])
	assert.Equal(t, "Test agent", rows[1][10])

	_, err = f.leads.Export(f.ctx, LeadFilter{}, "xml", agent)
	requireKind(t, err, errs.KindValidation)
}

func TestExportUploadsWhenFileStoreIsSet(t *testing.T) {
	f := newFixture(t)
	admin := f.account(t, models.RoleAdmin, "admin@example.com")
	f.lead(t, "one@example.com", "", 10)

	files := &memFiles{objects: map[string][]byte{}}
	f.leads.WithFileStore(files, time.Hour)

	out, err := f.leads.Export(f.ctx, LeadFilter{}, ExportCSV, admin)
	require.NoError(t, err)
	assert.Nil(t, out.Data)
	assert.Contains(t, out.URL, "exports/"+admin.ID+"/")
	assert.Len(t, files.objects, 1)

	out, err = f.leads.Export(f.ctx, LeadFilter{}, ExportJSON, admin)
	require.NoError(t, err)
	assert.NotEmpty(t, out.Data)
	assert.Empty(t, out.URL)
}
