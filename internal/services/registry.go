package services

import (
	"mdmc/internal/auth"
	"mdmc/internal/store"
)

// Stores are the persistence backends every service is built on.
type Stores struct {
	Accounts  store.AccountStore
	Leads     store.LeadStore
	Campaigns store.CampaignStore
}

// Registry holds one instance of each service. The HTTP server, the task
// worker and the helper CLI share it.
type Registry struct {
	Auth      *AuthService
	Accounts  *AccountService
	Leads     *LeadService
	Campaigns *CampaignService
	Reports   *ReportService
}

func NewRegistry(st Stores, tokens *auth.Tokens, identity auth.IdentityProvider) *Registry {
	return &Registry{
		Auth:      NewAuthService(st.Accounts, tokens, identity),
		Accounts:  NewAccountService(st.Accounts, st.Leads, st.Campaigns),
		Leads:     NewLeadService(st.Leads, st.Accounts, st.Campaigns),
		Campaigns: NewCampaignService(st.Campaigns, st.Accounts, st.Leads),
		Reports:   NewReportService(st.Leads, st.Campaigns),
	}
}
