package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/safarmate/transit-backend/internal/metrics"
	"github.com/safarmate/transit-backend/internal/models"
	"github.com/safarmate/transit-backend/pkg/validator"
	"github.com/sirupsen/logrus"
)

// DefaultSessionTTL is how long an idle SMS session survives
const DefaultSessionTTL = 10 * time.Minute

const (
	smsHelp = "MENU: show options\n" +
		"TRACK <stopId>: ETA to stop (e.g., TRACK s21a)\n" +
		"SEATS <busId>: seat availability (e.g., SEATS b1)\n" +
		"BOOK <busId> [seats]: hold seats (e.g., BOOK b1 2)\n" +
		"CONFIRM <bookingId>: confirm a held booking"

	smsMenu = "Select Option:\n" +
		"1) TRACK <stopId>\n" +
		"2) SEATS <busId>\n" +
		"---\n" + smsHelp

	promptStop   = "Reply with: TRACK <stopId> (e.g., TRACK s21a)"
	repromptStop = "Please send: TRACK <stopId> (e.g., TRACK s21a)"
	promptBus    = "Reply with: SEATS <busId> (e.g., SEATS b1)"
	repromptBus  = "Please send: SEATS <busId> (e.g., SEATS b1)"

	replyStopNotFound = "Stop not found."
	replyNoActiveBus  = "No active bus on this route."
	replyBusNotFound  = "Bus not found."
	replyUnavailable  = "Service temporarily unavailable. Please try again."
	replyUnknown      = "Unknown command.\n" + smsHelp
	etaUnknown        = "unknown"
	commandUnknownTag = "unknown"
	commandMenuTag    = "menu"
	channelSMSLabel   = "sms"
	channelUSSDLabel  = "ussd"
)

// SMSMessage is an inbound SMS from the gateway
type SMSMessage struct {
	SessionID   string
	PhoneNumber string
	Text        string
}

// ChannelDispatcher answers SMS and USSD text commands
type ChannelDispatcher struct {
	transit    *TransitService
	eta        *ETAService
	bookings   *BookingService
	sessions   SessionStore
	sessionTTL time.Duration
	phones     *validator.PhoneValidator
	logger     *logrus.Logger
}

// NewChannelDispatcher creates a new ChannelDispatcher
func NewChannelDispatcher(
	transit *TransitService,
	eta *ETAService,
	bookings *BookingService,
	sessions SessionStore,
	sessionTTL time.Duration,
	logger *logrus.Logger,
) *ChannelDispatcher {
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	return &ChannelDispatcher{
		transit:    transit,
		eta:        eta,
		bookings:   bookings,
		sessions:   sessions,
		sessionTTL: sessionTTL,
		phones:     validator.NewPhoneValidator(),
		logger:     logger,
	}
}

// SessionKey returns the cache key for a sender, or "" when the message carries no identity
func (d *ChannelDispatcher) SessionKey(msg SMSMessage) string {
	if id := strings.TrimSpace(msg.SessionID); id != "" {
		return "sms:session:" + id
	}
	if phone := strings.TrimSpace(msg.PhoneNumber); phone != "" {
		return "sms:user:" + d.phones.SessionID(phone)
	}
	return ""
}

// HandleSMS runs one turn of the SMS state machine and returns the plain-text reply.
// Failures are rendered as text; nothing internal reaches the sender. A turn whose
// session could not be stored is answered as unavailable so the sender resends.
func (d *ChannelDispatcher) HandleSMS(ctx context.Context, msg SMSMessage) string {
	input := strings.TrimSpace(msg.Text)
	key := d.SessionKey(msg)

	var reply string
	step := func(current *models.Session) (*models.Session, models.SessionAction, error) {
		var next *models.Session
		var action models.SessionAction
		reply, next, action = d.smsTurn(ctx, input, current)
		return next, action, nil
	}

	if key == "" {
		_, _, _ = step(nil)
		return reply
	}
	if err := d.sessions.Update(ctx, key, d.sessionTTL, step); err != nil {
		d.logger.WithError(err).WithField("session_key", key).Error("Failed to update SMS session")
		return replyUnavailable
	}
	return reply
}

func (d *ChannelDispatcher) smsTurn(ctx context.Context, input string, current *models.Session) (string, *models.Session, models.SessionAction) {
	state := models.StepMenu
	if current != nil {
		state = current.Step
	}

	if input == "" || strings.EqualFold(input, "MENU") {
		d.count(channelSMSLabel, commandMenuTag)
		return smsMenu, &models.Session{Step: models.StepMenu}, models.SessionSave
	}

	tokens := strings.Fields(input)
	cmd := strings.ToUpper(tokens[0])
	arg := ""
	if len(tokens) > 1 {
		arg = tokens[1]
	}
	d.count(channelSMSLabel, cmd)

	switch {
	case cmd == "1" && arg == "":
		return promptStop, &models.Session{Step: models.StepAwaitStop}, models.SessionSave
	case state == models.StepAwaitStop && cmd != "TRACK":
		return repromptStop, nil, models.SessionKeep
	case cmd == "TRACK" && arg != "":
		track, reply := d.trackStop(ctx, arg)
		if track == nil {
			return reply, nil, models.SessionKeep
		}
		return fmt.Sprintf("Next bus for %s arriving in %s. %d seats available.",
			track.RouteCode, track.minutesText(), track.Bus.SeatCount), nil, models.SessionClear
	case cmd == "2" && arg == "":
		return promptBus, &models.Session{Step: models.StepAwaitBus}, models.SessionSave
	case state == models.StepAwaitBus && cmd != "SEATS":
		return repromptBus, nil, models.SessionKeep
	case cmd == "SEATS" && arg != "":
		bus, reply := d.lookupBus(ctx, arg)
		if bus == nil {
			return reply, nil, models.SessionKeep
		}
		return fmt.Sprintf("Bus %s: %d seats available.", arg, bus.SeatCount), nil, models.SessionClear
	case cmd == "BOOK" && arg != "":
		return d.book(ctx, arg, tokens[2:]), nil, models.SessionKeep
	case cmd == "CONFIRM" && arg != "":
		return d.confirm(ctx, arg), nil, models.SessionKeep
	}
	return replyUnknown, nil, models.SessionKeep
}

func (d *ChannelDispatcher) count(channel, cmd string) {
	switch cmd {
	case "1", "2", "TRACK", "SEATS", "BOOK", "CONFIRM", commandMenuTag:
	default:
		cmd = commandUnknownTag
	}
	metrics.ChannelMessages.WithLabelValues(channel, strings.ToLower(cmd)).Inc()
}

// stopTrack is what a TRACK lookup found
type stopTrack struct {
	RouteCode  string
	Bus        *models.Bus
	ETAMinutes *int
}

func (t *stopTrack) minutesText() string {
	if t.ETAMinutes == nil {
		return etaUnknown
	}
	return fmt.Sprintf("%d mins", *t.ETAMinutes)
}

// trackStop resolves stop → route → active bus → ETA. On a miss it returns nil
// and the not-found sentence to send back.
func (d *ChannelDispatcher) trackStop(ctx context.Context, stopID string) (*stopTrack, string) {
	stop, err := d.transit.routes.FindStop(ctx, stopID)
	if err != nil {
		d.logger.WithError(err).WithField("stop_id", stopID).Error("Stop lookup failed")
		return nil, replyUnavailable
	}
	if stop == nil {
		return nil, replyStopNotFound
	}
	route, err := d.transit.GetRoute(ctx, stop.RouteID)
	if err != nil {
		d.logger.WithError(err).WithField("route_id", stop.RouteID).Error("Route lookup failed")
		return nil, replyUnavailable
	}
	if route == nil {
		return nil, replyStopNotFound
	}

	bus, err := d.transit.ActiveBusForRoute(ctx, route.ID)
	if err != nil {
		d.logger.WithError(err).WithField("route_id", route.ID).Error("Bus lookup failed")
		return nil, replyUnavailable
	}
	if bus == nil {
		return nil, replyNoActiveBus
	}

	track := &stopTrack{RouteCode: route.Code, Bus: bus}
	eta, err := d.eta.EtaFromBusToStop(ctx, bus.ID, stopID)
	if err != nil {
		d.logger.WithError(err).WithFields(logrus.Fields{
			"bus_id":  bus.ID,
			"stop_id": stopID,
		}).Warn("ETA unavailable for text reply")
	} else {
		minutes := eta.Minutes()
		track.ETAMinutes = &minutes
	}
	return track, ""
}

func (d *ChannelDispatcher) lookupBus(ctx context.Context, busID string) (*models.Bus, string) {
	bus, err := d.transit.GetBus(ctx, busID)
	if err != nil {
		d.logger.WithError(err).WithField("bus_id", busID).Error("Bus lookup failed")
		return nil, replyUnavailable
	}
	if bus == nil {
		return nil, replyBusNotFound
	}
	return bus, ""
}

func (d *ChannelDispatcher) book(ctx context.Context, busID string, rest []string) string {
	seats := 1
	if len(rest) > 0 {
		n, err := strconv.Atoi(rest[0])
		if err != nil || n <= 0 {
			return "Seats must be a positive number."
		}
		seats = n
	}

	result, err := d.bookings.CreateBooking(ctx, CreateBookingInput{
		BusID:   busID,
		Seats:   seats,
		Channel: models.ChannelSMS,
	})
	if err != nil {
		d.logger.WithError(err).WithField("bus_id", busID).Error("SMS booking failed")
		return replyUnavailable
	}
	if !result.OK {
		return bookingFailureText(result.Reason)
	}
	return fmt.Sprintf("Booking %s: %d seat(s) held on bus %s. Reply CONFIRM %s to confirm.",
		result.Booking.ID, seats, busID, result.Booking.ID)
}

func (d *ChannelDispatcher) confirm(ctx context.Context, bookingID string) string {
	result, err := d.bookings.ConfirmBooking(ctx, bookingID)
	if err != nil {
		d.logger.WithError(err).WithField("booking_id", bookingID).Error("SMS confirmation failed")
		return replyUnavailable
	}
	if !result.OK {
		return bookingFailureText(result.Reason)
	}
	return fmt.Sprintf("Booking %s confirmed.", bookingID)
}

func bookingFailureText(reason models.FailureReason) string {
	switch reason {
	case models.ReasonBusNotFound:
		return replyBusNotFound
	case models.ReasonInsufficientSeat:
		return "Not enough seats available."
	case models.ReasonInvalidSeatCount:
		return "Seats must be a positive number."
	case models.ReasonBookingNotFound:
		return "Booking not found."
	case models.ReasonHoldExpired:
		return "Your seat hold has expired. Please book again."
	default:
		return "Booking cannot be confirmed."
	}
}
