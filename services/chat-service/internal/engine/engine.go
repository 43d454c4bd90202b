// Package engine turns one inbound chat message into at most one validated
// ledger mutation and one outbound reply. Deterministic quick intents are
// resolved before the dialogue model ever gets involved; everything else
// flows through grounding, generation, directive extraction and apply.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/agendapet/agendapet/libs/petshop"
	"github.com/agendapet/agendapet/services/chat-service/internal/applier"
	"github.com/agendapet/agendapet/services/chat-service/internal/directive"
	"github.com/agendapet/agendapet/services/chat-service/internal/orchestrator"
	"github.com/agendapet/agendapet/services/chat-service/internal/quickintent"
)

const memoryWindow = 20

type ProfileStore interface {
	GetByInstance(ctx context.Context, instance string) (petshop.BusinessProfile, error)
}

// Ledger is the appointment store as the engine sees it. Upcoming listings
// are tenant-wide from the given day, non-cancelled, ordered by date then
// time; ById mutations are conditional writes that report whether they took.
type Ledger interface {
	applier.Ledger
	ConfirmByID(ctx context.Context, id string) (bool, error)
	CancelByID(ctx context.Context, id string) (bool, error)
	ListUpcoming(ctx context.Context, tenantID, fromDate string) ([]petshop.Appointment, error)
	ListCompletedBefore(ctx context.Context, tenantID, date string) ([]petshop.Appointment, error)
}

type Memory interface {
	Append(ctx context.Context, tenantID, contact, role, text string) error
	Recent(ctx context.Context, tenantID, contact string, limit int) ([]petshop.ConversationTurn, error)
}

type Model interface {
	Complete(ctx context.Context, system string, turns []petshop.ConversationTurn) (string, error)
}

type Sender interface {
	SendText(ctx context.Context, instance, number, text string) error
}

type Engine struct {
	profiles ProfileStore
	ledger   Ledger
	memory   Memory
	model    Model
	sender   Sender
	applier  *applier.Applier
	logger   *slog.Logger
	loc      *time.Location
	now      func() time.Time
}

func New(profiles ProfileStore, ledger Ledger, memory Memory, model Model, sender Sender, logger *slog.Logger, loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{
		profiles: profiles,
		ledger:   ledger,
		memory:   memory,
		model:    model,
		sender:   sender,
		applier:  applier.New(ledger, logger),
		logger:   logger,
		loc:      loc,
		now:      time.Now,
	}
}

// HandleMessage processes one inbound customer message end to end.
// The caller acknowledges the webhook regardless of the returned error.
func (e *Engine) HandleMessage(ctx context.Context, instance, sender, text string) error {
	profile, err := e.profiles.GetByInstance(ctx, instance)
	if err != nil {
		return fmt.Errorf("profile for instance %q: %w", instance, err)
	}
	contact := petshop.NormalizePhone(sender)
	now := e.now().In(e.loc)

	if intent := quickintent.Match(text); intent != quickintent.IntentNone {
		return e.handleQuickIntent(ctx, profile, contact, intent, now)
	}
	return e.handleDialogue(ctx, profile, contact, text, now)
}

// handleQuickIntent resolves the deterministic shortcut path. It never
// touches conversation memory or the model.
func (e *Engine) handleQuickIntent(ctx context.Context, profile petshop.BusinessProfile, contact string, intent quickintent.Intent, now time.Time) error {
	tenant := profile.TenantID
	today := now.Format("2006-01-02")

	upcoming, err := e.ledger.ListUpcoming(ctx, tenant, today)
	if err != nil {
		return fmt.Errorf("list upcoming: %w", err)
	}
	mine := filterByContact(upcoming, contact)

	var reply string
	if len(mine) == 0 {
		reply = "Não encontrei nenhum agendamento em aberto para este número. Me diga o dia e o horário que você procura e eu verifico para você!"
	} else {
		nearest := mine[0]
		switch intent {
		case quickintent.IntentConfirm:
			reply, err = e.quickConfirm(ctx, nearest)
		case quickintent.IntentCancel:
			reply, err = e.quickCancel(ctx, nearest)
		case quickintent.IntentReschedule:
			reply = fmt.Sprintf("Claro! Seu agendamento de %s está marcado para %s às %s. Para qual dia e horário você gostaria de remarcar?",
				nearest.PetName, formatDate(nearest.Date), nearest.Time)
		}
		if err != nil {
			return err
		}
	}

	if err := e.sender.SendText(ctx, profile.InstanceName, contact, reply); err != nil {
		e.logger.Error("reply delivery failed", "tenant_id", tenant, "err", err)
	}
	return nil
}

func (e *Engine) quickConfirm(ctx context.Context, appt petshop.Appointment) (string, error) {
	if appt.Status == petshop.StatusConfirmed {
		return fmt.Sprintf("O agendamento de %s no dia %s às %s já está confirmado. Até lá!",
			appt.PetName, formatDate(appt.Date), appt.Time), nil
	}
	if !petshop.CanTransition(appt.Status, petshop.StatusConfirmed, false) {
		return fmt.Sprintf("O atendimento de %s no dia %s às %s já foi finalizado, então não há nada para confirmar. Quer marcar um novo horário?",
			appt.PetName, formatDate(appt.Date), appt.Time), nil
	}
	ok, err := e.ledger.ConfirmByID(ctx, appt.ID)
	if err != nil {
		return "", fmt.Errorf("confirm appointment %s: %w", appt.ID, err)
	}
	if !ok {
		// The row moved between the read and the conditional write.
		return fmt.Sprintf("O agendamento de %s no dia %s às %s acabou de ser alterado e não pôde ser confirmado. Pode me dizer o que você gostaria de fazer?",
			appt.PetName, formatDate(appt.Date), appt.Time), nil
	}
	return fmt.Sprintf("Perfeito! O agendamento de %s no dia %s às %s está confirmado. Até lá!",
		appt.PetName, formatDate(appt.Date), appt.Time), nil
}

func (e *Engine) quickCancel(ctx context.Context, appt petshop.Appointment) (string, error) {
	if !petshop.CanTransition(appt.Status, petshop.StatusCancelled, false) {
		return fmt.Sprintf("O atendimento de %s no dia %s às %s já foi finalizado, então não há nada para cancelar. Quer marcar um novo horário?",
			appt.PetName, formatDate(appt.Date), appt.Time), nil
	}
	ok, err := e.ledger.CancelByID(ctx, appt.ID)
	if err != nil {
		return "", fmt.Errorf("cancel appointment %s: %w", appt.ID, err)
	}
	if !ok {
		return fmt.Sprintf("O agendamento de %s no dia %s às %s acabou de ser alterado e não pôde ser cancelado. Pode me dizer o que você gostaria de fazer?",
			appt.PetName, formatDate(appt.Date), appt.Time), nil
	}
	return fmt.Sprintf("Tudo bem, o agendamento de %s no dia %s às %s foi cancelado. Quando quiser marcar de novo, é só chamar!",
		appt.PetName, formatDate(appt.Date), appt.Time), nil
}

func (e *Engine) handleDialogue(ctx context.Context, profile petshop.BusinessProfile, contact, text string, now time.Time) error {
	tenant := profile.TenantID
	today := now.Format("2006-01-02")

	if err := e.memory.Append(ctx, tenant, contact, petshop.RoleCustomer, text); err != nil {
		e.logger.Error("memory append failed", "tenant_id", tenant, "err", err)
	}
	turns, err := e.memory.Recent(ctx, tenant, contact, memoryWindow)
	if err != nil {
		e.logger.Error("memory read failed", "tenant_id", tenant, "err", err)
		turns = []petshop.ConversationTurn{{Role: petshop.RoleCustomer, Text: text}}
	}

	upcoming, err := e.ledger.ListUpcoming(ctx, tenant, today)
	if err != nil {
		return fmt.Errorf("list upcoming: %w", err)
	}
	history, err := e.ledger.ListCompletedBefore(ctx, tenant, today)
	if err != nil {
		e.logger.Error("history read failed", "tenant_id", tenant, "err", err)
	}

	prompt := orchestrator.SystemPrompt(orchestrator.GroundingInput{
		Profile:          profile,
		TenantUpcoming:   upcoming,
		CustomerUpcoming: filterByContact(upcoming, contact),
		History:          filterByContact(history, contact),
		Contact:          contact,
		Now:              now,
	})

	// A failed generation aborts the turn: no reply goes out and no
	// assistant turn is recorded.
	reply, err := e.model.Complete(ctx, prompt, turns)
	if err != nil {
		return fmt.Errorf("model completion: %w", err)
	}

	visible, dir, derr := directive.Extract(reply)
	if derr != nil {
		e.logger.Error("directive extraction failed", "tenant_id", tenant, "err", derr)
	}
	if dir != nil {
		if err := e.applier.Apply(ctx, tenant, contact, *dir); err != nil {
			e.logger.Error("directive apply failed", "tenant_id", tenant, "type", dir.Type, "err", err)
			if dir.Type == directive.TypeCreate {
				visible += "\n\n⚠️ Houve um erro ao registrar o agendamento. Por favor, tente novamente."
			}
		}
	}
	if visible == "" {
		visible = "Desculpe, não consegui processar sua mensagem. Pode repetir?"
	}

	if err := e.sender.SendText(ctx, profile.InstanceName, contact, visible); err != nil {
		e.logger.Error("reply delivery failed", "tenant_id", tenant, "err", err)
	}
	if err := e.memory.Append(ctx, tenant, contact, petshop.RoleAssistant, visible); err != nil {
		e.logger.Error("memory append failed", "tenant_id", tenant, "err", err)
	}
	return nil
}

func filterByContact(appts []petshop.Appointment, contact string) []petshop.Appointment {
	var mine []petshop.Appointment
	for _, a := range appts {
		if petshop.PhonesMatch(contact, a.OwnerPhone) {
			mine = append(mine, a)
		}
	}
	return mine
}

// formatDate renders a stored YYYY-MM-DD day as DD/MM for replies.
func formatDate(date string) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	return t.Format("02/01")
}
