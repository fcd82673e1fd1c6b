package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"impactflow/api/internal/models"
	"impactflow/api/internal/store"
)

var (
	ErrUnknownEvent       = errors.New("event not found")
	ErrAlreadyVolunteered = errors.New("already volunteered for this event")
)

// EventService covers event CRUD and volunteering, all simple record
// mutations over the gateway.
type EventService struct {
	gw  *store.Gateway
	log zerolog.Logger
}

func NewEventService(gw *store.Gateway, logger zerolog.Logger) *EventService {
	return &EventService{gw: gw, log: logger}
}

// List returns all events sorted by date ascending.
func (s *EventService) List(ctx context.Context) ([]models.Event, error) {
	events, err := s.gw.Events.Find(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].Date.Before(events[j].Date)
	})
	return events, nil
}

func (s *EventService) Get(ctx context.Context, id string) (models.Event, error) {
	event, err := s.gw.Events.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Event{}, ErrUnknownEvent
		}
		return models.Event{}, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}

type CreateEventInput struct {
	Title       string
	Description string
	Date        time.Time
	Location    string
	Category    string
	Image       string
	Budget      float64
}

func (s *EventService) Create(ctx context.Context, organizerID string, input CreateEventInput) (models.Event, error) {
	event, err := s.gw.Events.Create(ctx, models.Event{
		Title:       input.Title,
		Description: input.Description,
		Date:        input.Date,
		Location:    input.Location,
		Category:    input.Category,
		Image:       input.Image,
		Budget:      input.Budget,
		Status:      models.EventStatusUpcoming,
		Volunteers:  []string{},
		Organizer:   organizerID,
	})
	if err != nil {
		return models.Event{}, fmt.Errorf("create event: %w", err)
	}
	return event, nil
}

// Update applies a partial change. Only the organizer or an admin may modify
// an event.
func (s *EventService) Update(ctx context.Context, actorID string, actorRole models.Role, id string, partial store.Predicate) (models.Event, error) {
	event, err := s.Get(ctx, id)
	if err != nil {
		return models.Event{}, err
	}
	if event.Organizer != actorID && actorRole != models.RoleAdmin {
		return models.Event{}, ErrForbidden
	}

	updated, err := s.gw.Events.Update(ctx, id, partial)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Event{}, ErrUnknownEvent
		}
		return models.Event{}, fmt.Errorf("update event: %w", err)
	}
	return updated, nil
}

func (s *EventService) Delete(ctx context.Context, actorID string, actorRole models.Role, id string) error {
	event, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if event.Organizer != actorID && actorRole != models.RoleAdmin {
		return ErrForbidden
	}

	if _, err := s.gw.Events.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUnknownEvent
		}
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

// Join registers userID as a volunteer on the event. Joining twice is
// rejected.
func (s *EventService) Join(ctx context.Context, userID, eventID string) error {
	event, err := s.Get(ctx, eventID)
	if err != nil {
		return err
	}

	for _, v := range event.Volunteers {
		if v == userID {
			return ErrAlreadyVolunteered
		}
	}

	volunteers := append(event.Volunteers, userID)
	if _, err := s.gw.Events.Update(ctx, eventID, store.Predicate{"volunteers": volunteers}); err != nil {
		return fmt.Errorf("join event: %w", err)
	}
	return nil
}

// JoinedEvents returns the events userID has volunteered for.
func (s *EventService) JoinedEvents(ctx context.Context, userID string) ([]models.Event, error) {
	events, err := s.gw.Events.Find(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	var joined []models.Event
	for _, event := range events {
		for _, v := range event.Volunteers {
			if v == userID {
				joined = append(joined, event)
				break
			}
		}
	}
	return joined, nil
}

// Volunteers returns the sanitized accounts volunteering on an event.
func (s *EventService) Volunteers(ctx context.Context, eventID string) ([]AccountView, error) {
	event, err := s.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}

	views := make([]AccountView, 0, len(event.Volunteers))
	for _, id := range event.Volunteers {
		user, err := s.gw.Users.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				s.log.Warn().Str("account_id", id).Str("event_id", eventID).
					Msg("volunteer reference points at missing account")
				continue
			}
			return nil, fmt.Errorf("load volunteer: %w", err)
		}
		views = append(views, viewOf(user))
	}
	return views, nil
}
