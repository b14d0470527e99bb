package management

import (
	"context"
	"fmt"

	"travel_crm_backend/internal/access"
	"travel_crm_backend/internal/events"
	"travel_crm_backend/internal/leads/domain"
	"travel_crm_backend/internal/leads/ports"
	"travel_crm_backend/internal/leads/repository"

	"github.com/google/uuid"
)

// Side effects that run after commit. None of them can fail the operation.

func (s *Service) afterCreate(ctx context.Context, scope access.Scope, lead repository.Lead, matched *domain.Match, ref ports.ContactRef) {
	actor := actorID(scope)

	action := domain.ActionCreated
	if lead.Source == SourceImport {
		action = domain.ActionImported
	}
	desc := fmt.Sprintf("Lead %s creado (origen: %s)", lead.InquiryNumber, lead.Source)
	if lead.AssignedTo != nil && matched == nil {
		desc += ", asignado a " + s.displayName(ctx, lead.AssignedTo)
	}
	s.record(ctx, lead, action, desc, actor, nil)

	if matched != nil {
		s.record(ctx, lead, domain.ActionAutoAssigned,
			"Asignado automáticamente a "+s.displayName(ctx, &matched.UserID)+" por regla", actor, nil)
		s.metrics.RecordAssignment("auto")
	}
	if ref.Created {
		s.record(ctx, lead, domain.ActionConvertedToContact, "Contacto creado con etiqueta assigned", actor, &ref.ID)
		s.metrics.RecordContactConverted()
	}
	s.metrics.RecordLeadCreated(lead.Source)

	s.publish(ctx, events.LeadCreated{
		BaseEvent:      events.NewBaseEvent(),
		LeadID:         lead.ID,
		OrganizationID: lead.OrganizationID,
		InquiryNumber:  lead.InquiryNumber,
		FullName:       lead.FullName,
		Source:         lead.Source,
		AssignedTo:     lead.AssignedTo,
		AutoAssigned:   matched != nil,
	})
	if ref.Created {
		s.publishConverted(ctx, lead, ref.ID, string(domain.StatusAssigned))
	}
}

func (s *Service) afterStatusChange(ctx context.Context, actor *uuid.UUID, previous repository.Lead, res StatusResult, plan domain.TransitionPlan) {
	lead := res.Lead
	desc := fmt.Sprintf("Estado cambiado de %s a %s", previous.Status, lead.Status)

	switch plan.Kind {
	case domain.TransitionConvert:
		if res.ContactCreated {
			desc += "; contacto creado"
		} else {
			desc += "; contacto existente"
		}
	case domain.TransitionStatusOnly:
		desc += " (sin asignado, no se creó contacto)"
	}
	s.record(ctx, lead, plan.HistoryAction, desc, actor, res.ContactID)

	s.metrics.RecordStatusTransition(lead.Status)
	if res.ContactCreated {
		s.metrics.RecordContactConverted()
	}

	s.publish(ctx, events.LeadStatusChanged{
		BaseEvent:      events.NewBaseEvent(),
		LeadID:         lead.ID,
		OrganizationID: lead.OrganizationID,
		OldStatus:      previous.Status,
		NewStatus:      lead.Status,
		AssignedTo:     lead.AssignedTo,
		ActorID:        actor,
	})
	if res.ContactCreated && res.ContactID != nil {
		s.publishConverted(ctx, lead, *res.ContactID, lead.Status)
	}
}

// afterAssignment records the change. matched is set when the assignee came
// from the rule matcher; the rule is then noted in a second entry.
func (s *Service) afterAssignment(ctx context.Context, actor *uuid.UUID, previous repository.Lead, res AssignResult, matched *domain.Match) {
	if res.Kind == domain.AssignmentNoChange {
		return
	}
	lead := res.Lead

	var desc string
	switch res.Kind {
	case domain.AssignmentUnassign:
		desc = fmt.Sprintf("Asignación removida (antes: %s); estado vuelve a new", s.displayName(ctx, previous.AssignedTo))
	case domain.AssignmentFirstAssign:
		desc = fmt.Sprintf("Asignado a %s (antes: %s)", s.displayName(ctx, lead.AssignedTo), s.displayName(ctx, previous.AssignedTo))
	default:
		desc = fmt.Sprintf("Reasignado de %s a %s", s.displayName(ctx, previous.AssignedTo), s.displayName(ctx, lead.AssignedTo))
	}
	s.record(ctx, lead, domain.ActionAssignmentChange, desc, actor, nil)

	kind := res.Kind.String()
	if matched != nil {
		s.record(ctx, lead, domain.ActionAutoAssigned,
			"Asignado automáticamente a "+s.displayName(ctx, lead.AssignedTo)+" por regla", actor, nil)
		kind = "auto"
	}
	s.metrics.RecordAssignment(kind)

	if res.ContactCreated {
		s.record(ctx, lead, domain.ActionConvertedToContact, "Contacto creado con etiqueta assigned", actor, res.ContactID)
		s.metrics.RecordContactConverted()
	}

	s.publish(ctx, events.LeadAssigned{
		BaseEvent:      events.NewBaseEvent(),
		LeadID:         lead.ID,
		OrganizationID: lead.OrganizationID,
		InquiryNumber:  lead.InquiryNumber,
		PreviousAgent:  previous.AssignedTo,
		NewAgent:       lead.AssignedTo,
		ActorID:        actor,
	})
	if previous.Status != lead.Status {
		s.metrics.RecordStatusTransition(lead.Status)
		s.publish(ctx, events.LeadStatusChanged{
			BaseEvent:      events.NewBaseEvent(),
			LeadID:         lead.ID,
			OrganizationID: lead.OrganizationID,
			OldStatus:      previous.Status,
			NewStatus:      lead.Status,
			AssignedTo:     lead.AssignedTo,
			ActorID:        actor,
		})
	}
	if res.ContactCreated && res.ContactID != nil {
		s.publishConverted(ctx, lead, *res.ContactID, string(domain.StatusAssigned))
	}
}

func (s *Service) record(ctx context.Context, lead repository.Lead, action, description string, actor, contactID *uuid.UUID) {
	if s.history == nil {
		return
	}
	leadID := lead.ID
	s.history.Record(ctx, ports.HistoryEntry{
		OrganizationID: lead.OrganizationID,
		LeadID:         &leadID,
		ContactID:      contactID,
		Action:         action,
		Description:    description,
		UserID:         actor,
	})
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, event)
}

func (s *Service) publishConverted(ctx context.Context, lead repository.Lead, contactID uuid.UUID, tag string) {
	s.publish(ctx, events.LeadConvertedToContact{
		BaseEvent:      events.NewBaseEvent(),
		LeadID:         lead.ID,
		ContactID:      contactID,
		OrganizationID: lead.OrganizationID,
		Tag:            tag,
		AssignedTo:     lead.AssignedTo,
	})
}

func (s *Service) displayName(ctx context.Context, userID *uuid.UUID) string {
	if userID == nil {
		return "sin asignar"
	}
	if s.users == nil {
		return userID.String()
	}
	if name := s.users.DisplayName(ctx, *userID); name != "" {
		return name
	}
	return userID.String()
}
