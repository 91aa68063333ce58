package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"dispatch-server/services/dispatch-api/internal/infrastructure/invoker"
	"dispatch-server/services/dispatch-api/internal/infrastructure/metrics"
	"dispatch-server/services/dispatch-api/internal/infrastructure/observability"
)

// Service routes an interpreted command to the collaborator that can act on
// it. Every inference call below it passes through the invocation layer; the
// service itself only sees domain results or an AggregateError.
type Service struct {
	extractor IntentExtractor
	geocoder  Geocoder
	devices   DevicePublisher
	history   HistoryRepository
	log       zerolog.Logger
}

func NewService(
	extractor IntentExtractor,
	geocoder Geocoder,
	devices DevicePublisher,
	history HistoryRepository,
	log zerolog.Logger,
) *Service {
	return &Service{
		extractor: extractor,
		geocoder:  geocoder,
		devices:   devices,
		history:   history,
		log:       log.With().Str("component", "dispatch-service").Logger(),
	}
}

// Dispatch interprets the command and executes the matching action. An
// AggregateError from any collaborator bubbles up unchanged so the web layer
// can answer service-unavailable.
func (s *Service) Dispatch(ctx context.Context, command Command) (*Result, error) {
	ctx, span := observability.StartSpan(ctx, "dispatch-api", "dispatch.command")
	defer span.End()

	if command.ID == "" {
		command.ID = uuid.NewString()
	}
	if command.ReceivedAt.IsZero() {
		command.ReceivedAt = time.Now()
	}

	interpreted, err := s.extractor.ExtractIntent(ctx, command.Text)
	if err != nil {
		observability.RecordError(ctx, err)
		s.recordHistory(ctx, command, IntentUnknown, "", false)
		metrics.DispatchesTotal.WithLabelValues(string(IntentUnknown), "error").Inc()
		return nil, fmt.Errorf("extract intent: %w", err)
	}

	observability.AddSpanAttributes(ctx,
		attribute.String("dispatch.command_id", command.ID),
		attribute.String("dispatch.intent", string(interpreted.Intent)),
	)
	s.log.Info().
		Str("command_id", command.ID).
		Str("intent", string(interpreted.Intent)).
		Msg("command interpreted")

	result := &Result{
		CommandID: command.ID,
		Intent:    interpreted.Intent,
		Reply:     interpreted.Reply,
	}

	switch interpreted.Intent {
	case IntentGeocode:
		err = s.handleGeocode(ctx, interpreted, result)
	case IntentDeviceControl:
		err = s.handleDeviceControl(ctx, command, interpreted, result)
	case IntentAnswer:
		// The model's reply is the whole result.
	default:
		result.Intent = IntentUnknown
		if result.Reply == "" {
			result.Reply = "Sorry, I could not understand that command."
		}
	}

	if err != nil {
		observability.RecordError(ctx, err)
		s.recordHistory(ctx, command, result.Intent, result.Reply, false)
		metrics.DispatchesTotal.WithLabelValues(string(result.Intent), "error").Inc()
		return nil, err
	}

	result.CompletedAt = time.Now()
	s.recordHistory(ctx, command, result.Intent, result.Reply, true)
	metrics.DispatchesTotal.WithLabelValues(string(result.Intent), "success").Inc()
	return result, nil
}

func (s *Service) handleGeocode(ctx context.Context, interpreted *IntentResult, result *Result) error {
	query := strings.TrimSpace(interpreted.Query)
	if query == "" {
		query = interpreted.Reply
	}
	location, err := s.geocoder.Forward(ctx, query)
	if err != nil {
		return fmt.Errorf("geocode %q: %w", query, err)
	}
	if result.Reply == "" {
		result.Reply = fmt.Sprintf("Found %s.", location.DisplayName)
	}
	result.Actions = append(result.Actions, UIAction{
		Kind:  "map.pin",
		Title: location.DisplayName,
		Payload: map[string]any{
			"latitude":  location.Latitude,
			"longitude": location.Longitude,
			"query":     location.Query,
		},
	})
	return nil
}

func (s *Service) handleDeviceControl(ctx context.Context, command Command, interpreted *IntentResult, result *Result) error {
	deviceCommand := DeviceCommand{
		CommandID: command.ID,
		DeviceID:  interpreted.DeviceID,
		Action:    interpreted.Action,
		IssuedAt:  time.Now(),
	}
	if err := s.devices.PublishCommand(ctx, deviceCommand); err != nil {
		return fmt.Errorf("publish device command: %w", err)
	}
	if result.Reply == "" {
		result.Reply = fmt.Sprintf("Sent %q to %s.", interpreted.Action, interpreted.DeviceID)
	}
	result.Actions = append(result.Actions, UIAction{
		Kind:  "device.toast",
		Title: result.Reply,
		Payload: map[string]any{
			"device_id": interpreted.DeviceID,
			"action":    interpreted.Action,
		},
	})
	return nil
}

// recordHistory persists best-effort: a history failure never fails the
// dispatch itself.
func (s *Service) recordHistory(ctx context.Context, command Command, intent Intent, reply string, succeeded bool) {
	if s.history == nil {
		return
	}
	record := &Record{
		PublicID:  command.ID,
		SessionID: command.SessionID,
		Text:      command.Text,
		Intent:    intent,
		Reply:     reply,
		Succeeded: succeeded,
		CreatedAt: time.Now(),
	}
	if err := s.history.Save(ctx, record); err != nil {
		s.log.Error().Err(err).Str("command_id", command.ID).Msg("failed to save dispatch record")
	}
}

// History returns a stored dispatch record by its public id.
func (s *Service) History(ctx context.Context, publicID string) (*Record, error) {
	if s.history == nil {
		return nil, errors.New("history repository not configured")
	}
	return s.history.FindByPublicID(ctx, publicID)
}

// RecentHistory lists the most recent dispatch records, newest first.
func (s *Service) RecentHistory(ctx context.Context, limit int) ([]*Record, error) {
	if s.history == nil {
		return nil, errors.New("history repository not configured")
	}
	return s.history.ListRecent(ctx, limit)
}

// IsUnavailable reports whether err means every backend for the operation is
// currently down, i.e. the caller should degrade to service-unavailable.
func IsUnavailable(err error) bool {
	var aggregate *invoker.AggregateError
	return errors.As(err, &aggregate)
}
