package events

import (
	"fmt"
	"sync"

	console "mdmc/internal/utils/logger"
)

var log = console.New("EVENTS")

// Event names emitted by the services.
const (
	AccountRegistered            = "accounts.registered"
	AccountVerificationRequested = "accounts.verification_requested"
	AccountPasswordResetRequest  = "accounts.password_reset_requested"
	AccountPasswordChanged       = "accounts.password_changed"
	AccountDeactivated           = "accounts.deactivated"
	AccountRoleChanged           = "accounts.role_changed"

	LeadCreated    = "leads.created"
	LeadUpdated    = "leads.updated"
	LeadAssigned   = "leads.assigned"
	LeadConverted  = "leads.converted"
	LeadLost       = "leads.lost"
	LeadDeleted    = "leads.deleted"
	LeadsExported  = "leads.exported"
	CampaignSaved  = "campaigns.saved"
	CampaignStatus = "campaigns.status_changed"
)

// AccountMail carries what the mail tasks need to reach an account. Token is
// the raw one-time secret and is only set for reset and verification events.
type AccountMail struct {
	AccountID string
	Email     string
	FirstName string
	Token     string
}

// RecordChange identifies the record an event is about and who caused it.
type RecordChange struct {
	ID      string
	ActorID string
	Detail  string
}

type EventHandler func(interface{})

type EventBus struct {
	handlers map[string][]EventHandler
	mu       sync.RWMutex
}

var defaultBus = NewEventBus()

func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[string][]EventHandler),
	}
}

// On registers a handler for an event
func (bus *EventBus) On(event string, handler EventHandler) {
	bus.mu.Lock()
	defer bus.mu.Unlock()

	bus.handlers[event] = append(bus.handlers[event], handler)
	log.Debug("Registered handler for event: %s", event)
}

// Emit runs every handler for event on its own goroutine.
func (bus *EventBus) Emit(event string, data interface{}) {
	bus.mu.RLock()
	handlers := append([]EventHandler(nil), bus.handlers[event]...)
	bus.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	log.Debug("Emitting event: %s", event)

	for _, handler := range handlers {
		go func(h EventHandler) {
			defer func() {
				if r := recover(); r != nil {
					_ = log.Error("Panic in handler for %s", fmt.Errorf("panic: %v", r), event)
				}
			}()
			h(data)
		}(handler)
	}
}

// Reset drops every registered handler.
func (bus *EventBus) Reset() {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.handlers = make(map[string][]EventHandler)
}

// On Global event functions that use the default event bus
func On(event string, handler EventHandler) {
	defaultBus.On(event, handler)
}

func Emit(event string, data interface{}) {
	defaultBus.Emit(event, data)
}

func Reset() {
	defaultBus.Reset()
}

// RecordEvents are the events whose payload is a RecordChange.
var RecordEvents = []string{
	AccountPasswordChanged, AccountDeactivated, AccountRoleChanged,
	LeadCreated, LeadUpdated, LeadAssigned, LeadConverted, LeadLost, LeadDeleted, LeadsExported,
	CampaignSaved, CampaignStatus,
}

// Audit writes one log line per record change on bus.
func (bus *EventBus) Audit(l *console.Logger) {
	for _, event := range RecordEvents {
		event := event
		bus.On(event, func(data interface{}) {
			rc, ok := data.(RecordChange)
			if !ok {
				return
			}
			if rc.Detail != "" {
				l.Info("%s id=%s actor=%s %s", event, rc.ID, rc.ActorID, rc.Detail)
				return
			}
			l.Info("%s id=%s actor=%s", event, rc.ID, rc.ActorID)
		})
	}
}

func Audit(l *console.Logger) {
	defaultBus.Audit(l)
}
