package tasks

import (
	"context"

	"mdmc/internal/events"
	"mdmc/internal/utils/logger"
)

var bridgeEvents = map[string]string{
	events.AccountRegistered:            TypeWelcomeEmail,
	events.AccountVerificationRequested: TypeVerificationEmail,
	events.AccountPasswordResetRequest:  TypePasswordResetEmail,
}

// Bridge turns account mail events into email tasks.
func Bridge(enq Enqueuer) {
	log := logger.New("TASKS").With("bridge")
	for event, taskType := range bridgeEvents {
		taskType := taskType
		events.On(event, func(data interface{}) {
			m, ok := data.(events.AccountMail)
			if !ok {
				log.Warn("Unexpected payload %T for %s", data, taskType)
				return
			}
			err := enq.EnqueueEmail(context.Background(), taskType, EmailPayload{
				AccountID: m.AccountID,
				Email:     m.Email,
				FirstName: m.FirstName,
				Token:     m.Token,
			})
			if err != nil {
				log.Warn("Dropped %s for %s: %v", taskType, m.Email, err)
			}
		})
	}
}
