package handlers

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"golang.org/x/time/rate"
)

// EventSubscriber bridges the event bus to the WebSocket broadcaster,
// applying config-driven filtering and throttling for high-frequency events.
type EventSubscriber struct {
	handler       *WebSocketHandler
	eventService  interfaces.EventService
	logger        arbor.ILogger
	allowedEvents map[string]bool          // Whitelist of events to broadcast (empty = allow all)
	throttlers    map[string]*rate.Limiter // Rate limiters for high-frequency events
}

// broadcastEvents is the closed set of topics forwarded to UI clients.
var broadcastEvents = []interfaces.EventType{
	interfaces.EventProcessStarted,
	interfaces.EventProcessOutput,
	interfaces.EventProcessProgress,
	interfaces.EventProcessCompleted,
	interfaces.EventProcessError,
	interfaces.EventDedupCompleted,
}

// NewEventSubscriber creates and initializes an event subscriber
func NewEventSubscriber(handler *WebSocketHandler, eventService interfaces.EventService, config *common.WebSocketConfig) *EventSubscriber {
	s := &EventSubscriber{
		handler:       handler,
		eventService:  eventService,
		logger:        common.GetLogger(),
		allowedEvents: make(map[string]bool),
		throttlers:    make(map[string]*rate.Limiter),
	}

	if config != nil {
		for _, eventType := range config.AllowedEvents {
			s.allowedEvents[eventType] = true
		}
		for eventType, intervalStr := range config.ThrottleIntervals {
			duration, err := time.ParseDuration(intervalStr)
			if err != nil {
				s.logger.Warn().
					Err(err).
					Str("event_type", eventType).
					Str("interval", intervalStr).
					Msg("Failed to parse throttle interval - skipping throttler")
				continue
			}
			s.throttlers[eventType] = rate.NewLimiter(rate.Every(duration), 1)
		}
	}

	if eventService == nil {
		s.logger.Warn().Msg("EventSubscriber created with nil eventService - subscriptions will be skipped")
		return s
	}

	for _, eventType := range broadcastEvents {
		if _, err := eventService.Subscribe(eventType, s.handleEvent); err != nil {
			s.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("Failed to subscribe")
		}
	}

	return s
}

// handleEvent rebroadcasts a bus event to WebSocket clients, subject to
// whitelist and throttle checks.
func (s *EventSubscriber) handleEvent(ctx context.Context, event interfaces.Event) error {
	eventType := string(event.Type)

	if len(s.allowedEvents) > 0 && !s.allowedEvents[eventType] {
		return nil
	}

	if limiter, ok := s.throttlers[eventType]; ok && !limiter.Allow() {
		return nil
	}

	s.handler.Broadcast(eventType, event.Payload)
	return nil
}
