package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"mdmc/internal/mail"
	"mdmc/internal/models"
	"mdmc/internal/utils/logger"

	"github.com/hibiken/asynq"
)

var emailTemplates = map[string]string{
	TypePasswordResetEmail: mail.TemplatePasswordReset,
	TypeVerificationEmail:  mail.TemplateVerification,
	TypeWelcomeEmail:       mail.TemplateWelcome,
}

// Pruner drops expired refresh tokens.
type Pruner interface {
	PruneRefreshTokens(ctx context.Context) (int, error)
}

// OverdueCounter counts overdue leads per assignee id.
type OverdueCounter interface {
	OverdueByAssignee(ctx context.Context) (map[string]int64, error)
}

// AccountGetter loads an account by id.
type AccountGetter interface {
	Get(ctx context.Context, id string) (*models.Account, error)
}

// TaskHandler processes every task type the worker serves.
type TaskHandler struct {
	sender    mail.Sender
	accounts  AccountGetter
	pruner    Pruner
	overdue   OverdueCounter
	clientURL string
	logger    *logger.Logger
}

func NewTaskHandler(sender mail.Sender, accounts AccountGetter, pruner Pruner, overdue OverdueCounter, clientURL string) *TaskHandler {
	return &TaskHandler{
		sender:    sender,
		accounts:  accounts,
		pruner:    pruner,
		overdue:   overdue,
		clientURL: clientURL,
		logger:    logger.New("task_handler"),
	}
}

// HandleEmail renders and sends the template behind t.Type().
func (h *TaskHandler) HandleEmail(ctx context.Context, t *asynq.Task) error {
	name, ok := emailTemplates[t.Type()]
	if !ok {
		return fmt.Errorf("unknown email task %q: %w", t.Type(), asynq.SkipRetry)
	}
	var p EmailPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	if p.Email == "" {
		return fmt.Errorf("%s without recipient: %w", t.Type(), asynq.SkipRetry)
	}

	data := mail.Data{FirstName: p.FirstName, ClientURL: h.clientURL}
	switch t.Type() {
	case TypePasswordResetEmail:
		data.Link = h.clientURL + "/reset-password/" + p.Token
	case TypeVerificationEmail:
		data.Link = h.clientURL + "/verify-email/" + p.Token
	}

	msg, err := mail.Render(name, p.Email, data)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return h.sender.Send(ctx, msg)
}

func (h *TaskHandler) HandlePruneRefreshTokens(ctx context.Context, _ *asynq.Task) error {
	removed, err := h.pruner.PruneRefreshTokens(ctx)
	if err != nil {
		return h.logger.Error("Refresh token prune stopped after %d records", err, removed)
	}
	if removed > 0 {
		h.logger.Info("Pruned %d expired refresh tokens", removed)
	}
	return nil
}

// HandleOverdueDigest mails each active assignee their overdue lead count.
// A failed send is logged and the rest of the digest still goes out.
func (h *TaskHandler) HandleOverdueDigest(ctx context.Context, _ *asynq.Task) error {
	counts, err := h.overdue.OverdueByAssignee(ctx)
	if err != nil {
		return err
	}
	var failed error
	sent := 0
	for accountID, n := range counts {
		if n == 0 {
			continue
		}
		account, err := h.accounts.Get(ctx, accountID)
		if err != nil {
			h.logger.Warn("Skipping digest for %s: %v", accountID, err)
			continue
		}
		if !account.IsActive {
			continue
		}
		msg, err := mail.Render(mail.TemplateOverdueDigest, account.Email, mail.Data{
			FirstName: account.FirstName,
			Count:     n,
			ClientURL: h.clientURL,
		})
		if err != nil {
			return err
		}
		if err := h.sender.Send(ctx, msg); err != nil {
			failed = errors.Join(failed, err)
			continue
		}
		sent++
	}
	h.logger.Info("Overdue digest sent to %d assignees", sent)
	if failed != nil {
		return h.logger.Error("Some overdue digests failed", failed)
	}
	return nil
}

// Register binds every handler on mux.
func (h *TaskHandler) Register(mux *asynq.ServeMux) {
	for taskType := range emailTemplates {
		mux.HandleFunc(taskType, h.HandleEmail)
	}
	mux.HandleFunc(TypePruneRefreshTokens, h.HandlePruneRefreshTokens)
	mux.HandleFunc(TypeOverdueDigest, h.HandleOverdueDigest)
}
